package worker

import (
	"context"
	"errors"
)

// ErrDispatcherBusy is returned when the job queue is full.
var ErrDispatcherBusy = errors.New("dispatcher busy")

// Generator is the work a job performs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type JobType int

const (
	Advice JobType = iota
	Stop
)

func (t JobType) String() string {
	switch t {
	case Advice:
		return "advice"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

type Result struct {
	Text string
	Err  error
}

type Job struct {
	Type   JobType
	UserID int64
	Prompt string
	ctx    context.Context
	result chan Result
}

func (job Job) run(gen Generator) {
	if err := job.ctx.Err(); err != nil {
		job.result <- Result{Err: err}
		return
	}
	text, err := gen.Generate(job.ctx, job.Prompt)
	job.result <- Result{Text: text, Err: err}
}

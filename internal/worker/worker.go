package worker

import "log/slog"

type Worker struct {
	pool       *jobChannelPool
	generator  Generator
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool, gen Generator) *Worker {
	return &Worker{
		pool:       pool,
		generator:  gen,
		jobChannel: make(chan Job),
	}
}

// Start runs jobs until a Stop job arrives, returning to the idle list after each.
func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			switch job.Type {
			case Advice:
				job.run(w.generator)
				w.pool.Release(w.jobChannel)
			case Stop:
				slog.Debug("worker retired")
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}

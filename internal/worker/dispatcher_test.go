package worker

import (
	"container/list"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type echoGenerator struct {
	gate    chan struct{}
	started chan string
}

func (g *echoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.started != nil {
		g.started <- prompt
	}
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if prompt == "fail" {
		return "", errors.New("model unavailable")
	}
	return strings.ToUpper(prompt), nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDispatcherSubmit(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 4, QueueSize: 8}, &echoGenerator{})
	defer d.Stop()

	var wg sync.WaitGroup
	for i, prompt := range []string{"oats", "eggs", "kale", "fail"} {
		wg.Add(1)
		go func(user int64, prompt string) {
			defer wg.Done()
			got, err := d.Submit(context.Background(), user, prompt)
			if prompt == "fail" {
				if err == nil {
					t.Errorf("expected error for %q", prompt)
				}
				return
			}
			if err != nil || got != strings.ToUpper(prompt) {
				t.Errorf("submit %q: got %q, %v", prompt, got, err)
			}
		}(int64(i%2+1), prompt)
	}
	wg.Wait()

	running, _ := d.Workers()
	if running < 1 || running > 4 {
		t.Fatalf("unexpected worker count %d", running)
	}
}

func TestDispatcherBusy(t *testing.T) {
	gen := &echoGenerator{gate: make(chan struct{}), started: make(chan string, 4)}
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, gen)
	defer d.Stop()

	results := make(chan error, 3)
	submit := func(prompt string) {
		go func() {
			_, err := d.Submit(context.Background(), 1, prompt)
			results <- err
		}()
	}

	submit("a")
	<-gen.started // the only worker is now busy
	submit("b")
	waitFor(t, "b to leave the queue", func() bool { return len(d.JobQueue) == 0 })
	submit("c")
	// b is parked with the dispatcher and c waits in the shared queue
	waitFor(t, "c to be queued", func() bool { return d.QueueDepth() == 1 && len(d.JobQueue) == 1 })

	if _, err := d.Submit(context.Background(), 2, "d"); !errors.Is(err, ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}

	close(gen.gate)
	for i := 0; i < 3; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Fatalf("queued job failed: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("queued jobs never finished")
		}
	}
}

func TestDispatcherSubmitHonoursContext(t *testing.T) {
	gen := &echoGenerator{gate: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 2}, gen)
	defer d.Stop()
	defer close(gen.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.Submit(ctx, 1, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNextRotatesUsers(t *testing.T) {
	d := &Dispatcher{
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
	}
	for _, j := range []Job{
		{UserID: 1, Prompt: "1a"},
		{UserID: 1, Prompt: "1b"},
		{UserID: 1, Prompt: "1c"},
		{UserID: 2, Prompt: "2a"},
		{UserID: 3, Prompt: "3a"},
		{UserID: 2, Prompt: "2b"},
	} {
		d.enqueueJob(j)
	}

	var order []string
	for {
		job, ok := d.next()
		if !ok {
			break
		}
		order = append(order, job.Prompt)
	}
	want := "1a 2a 3a 1b 2b 1c"
	if got := strings.Join(order, " "); got != want {
		t.Fatalf("dispatch order %q, want %q", got, want)
	}
	if d.pending != 0 || len(d.queues) != 0 || d.ready.Len() != 0 {
		t.Fatalf("dispatcher not empty: pending=%d queues=%d ready=%d", d.pending, len(d.queues), d.ready.Len())
	}
}

func TestCancelUserFailsQueuedJobs(t *testing.T) {
	d := &Dispatcher{
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
	}
	job := Job{UserID: 9, Prompt: "x", ctx: context.Background(), result: make(chan Result, 1)}
	d.enqueueJob(job)
	d.CancelUser(9)

	res := <-job.result
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if _, ok := d.next(); ok {
		t.Fatalf("cancelled job still queued")
	}
}

package worker

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig sizes the worker pool and the shared job queue.
type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

type userQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher runs advice jobs on an elastic worker pool, taking one job per
// user in turn so a single busy user cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher

	mu        sync.Mutex
	queues    map[int64]*userQueue // job queue for each user
	ready     *list.List           // round-robin queue of user IDs
	positions map[int64]*list.Element
	pending   int

	quit     chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(cfg DispatcherConfig, gen Generator) *Dispatcher {
	if cfg.MinWorkers < 0 {
		cfg.MinWorkers = 0
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	pool := newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout, gen)

	d := &Dispatcher{
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		pool:      pool,
		JobQueue:  make(chan Job, cfg.QueueSize),
		quit:      make(chan struct{}),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues prompt for userID and waits for the reply. A full queue fails
// fast with ErrDispatcherBusy.
func (d *Dispatcher) Submit(ctx context.Context, userID int64, prompt string) (string, error) {
	job := Job{Type: Advice, UserID: userID, Prompt: prompt, ctx: ctx, result: make(chan Result, 1)}
	select {
	case d.JobQueue <- job:
	default:
		return "", ErrDispatcherBusy
	}
	select {
	case res := <-job.result:
		return res.Text, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// QueueDepth reports jobs accepted but not yet handed to a worker.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending + len(d.JobQueue)
}

// Workers reports how many workers exist and how many are idle.
func (d *Dispatcher) Workers() (running, idle int) {
	return d.pool.size()
}

// Stop ends dispatching. Queued jobs that were not started fail with
// context.Canceled.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
		d.pool.stop()
	})
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the user at the front of the queue
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				d.drain()
				return
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			d.drain()
			return
		default:
		}
	}
}

// CancelUser drops the user's queued jobs.
func (d *Dispatcher) CancelUser(userID int64) {
	d.mu.Lock()
	q := d.queues[userID]
	delete(d.queues, userID)
	if elem, ok := d.positions[userID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, userID)
	}
	if q != nil {
		d.pending -= len(q.jobs)
	}
	d.mu.Unlock()

	if q != nil {
		for _, job := range q.jobs {
			job.result <- Result{Err: context.Canceled}
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.UserID]
	if q == nil {
		q = &userQueue{}
		d.queues[job.UserID] = q
	}
	q.jobs = append(q.jobs, job)
	d.pending++
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.UserID] = d.ready.PushBack(job.UserID)
}

// dispatchOne hands the next job of the first ready user to a worker
func (d *Dispatcher) dispatchOne() bool {
	job, ok := d.next()
	if !ok {
		return false
	}
	workerChan := d.pool.acquire()
	slog.Debug("dispatch job", "type", job.Type, "user", job.UserID)
	workerChan <- job
	return true
}

// next pops the front user's oldest job and moves the user to the back.
func (d *Dispatcher) next() (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elem := d.ready.Front()
	if elem == nil {
		return Job{}, false
	}
	userID := elem.Value.(int64)
	q := d.queues[userID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	d.pending--
	if len(q.jobs) == 0 {
		// user leaves the rotation
		d.ready.Remove(elem)
		delete(d.positions, userID)
		delete(d.queues, userID)
	} else {
		d.ready.MoveToBack(elem)
	}
	return job, true
}

func (d *Dispatcher) drain() {
	d.mu.Lock()
	var jobs []Job
	for _, q := range d.queues {
		jobs = append(jobs, q.jobs...)
	}
	d.queues = make(map[int64]*userQueue)
	d.ready.Init()
	d.positions = make(map[int64]*list.Element)
	d.pending = 0
	d.mu.Unlock()

	for {
		select {
		case job := <-d.JobQueue:
			jobs = append(jobs, job)
			continue
		default:
		}
		break
	}
	for _, job := range jobs {
		job.result <- Result{Err: context.Canceled}
	}
}

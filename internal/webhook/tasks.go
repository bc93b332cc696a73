package webhook

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task is one unit of background sync work admitted by the dispatcher.
type Task struct {
	EventID string
	PageID  string
	Run     func(ctx context.Context) error
}

// Pool runs dispatched tasks on a fixed set of workers draining a buffered
// queue. Submission never blocks: when the queue is full the task is dropped
// and its event stays unprocessed.
type Pool struct {
	queue chan Task
	log   zerolog.Logger
	done  func(eventID string) error

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a pool of workers goroutines over a queue of queueSize.
// done is called with the event id after a task succeeds.
func NewPool(workers, queueSize int, log zerolog.Logger, done func(eventID string) error) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, queueSize),
		log:    log,
		done:   done,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(ctx)
	}
	return p
}

// Submit enqueues a task. It returns false when the queue is full.
func (p *Pool) Submit(task Task) bool {
	select {
	case p.queue <- task:
		return true
	default:
		p.log.Error().Str("event_id", task.EventID).Str("page_id", task.PageID).Msg("task queue full, dropping event")
		return false
	}
}

// Shutdown stops the workers and waits for in-flight tasks to finish.
// Queued tasks that have not started are abandoned.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			p.run(ctx, task)
		}
	}
}

// run executes one task, recovering panics so a misbehaving sync cannot take
// down a worker. Failed tasks leave their event unprocessed.
func (p *Pool) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("event_id", task.EventID).Interface("panic", r).Msg("sync task panicked")
		}
	}()

	if err := task.Run(ctx); err != nil {
		p.log.Error().Err(err).Str("event_id", task.EventID).Str("page_id", task.PageID).Msg("sync task failed")
		return
	}

	if p.done != nil {
		if err := p.done(task.EventID); err != nil {
			p.log.Error().Err(err).Str("event_id", task.EventID).Msg("mark event processed failed")
		}
	}
}

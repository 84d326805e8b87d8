package queue

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handler runs one job. Its error is logged; the job is not requeued.
type Handler func(ctx context.Context, job Job) error

// Worker consumes a Queue with a fixed number of consumers.
type Worker struct {
	q           *Queue
	concurrency int
	poll        time.Duration
	backoff     time.Duration
}

// NewWorker runs at most concurrency jobs at once (minimum 1).
func NewWorker(q *Queue, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{q: q, concurrency: concurrency, poll: 5 * time.Second, backoff: time.Second}
}

// Listen blocks until ctx ends. Each consumer pops one job, runs it to
// completion and pops the next, so no more than concurrency pipelines run.
func (w *Worker) Listen(ctx context.Context, h Handler) error {
	log.Printf("[queue] Worker listening on %s with %d consumers", w.q.Name(), w.concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		id := i + 1
		g.Go(func() error {
			w.consume(ctx, id, h)
			return nil
		})
	}
	err := g.Wait()
	log.Println("[queue] Worker stopped")
	return err
}

func (w *Worker) consume(ctx context.Context, id int, h Handler) {
	for ctx.Err() == nil {
		payload, ok, err := w.q.pop(ctx, w.poll)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[queue] Error popping from %s: %v", w.q.Name(), err)
			sleep(ctx, w.backoff)
			continue
		}
		if !ok {
			continue
		}
		job, err := Decode(payload)
		if err != nil {
			log.Printf("[queue] ❌ Dropping malformed job: %v", err)
			continue
		}
		log.Printf("[queue] Consumer %d took job %s (project %s)", id, job.ID, job.Request.ProjectID)
		if err := h(ctx, job); err != nil {
			log.Printf("[queue] ❌ Job %s failed: %v", job.ID, err)
			continue
		}
		log.Printf("[queue] ✅ Job %s finished", job.ID)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package window

import (
	"context"
	"sync"
)

// Queue is a Poster that never blocks the caller. One goroutine hands the
// posted functions to deliver in order, so Post is safe from inside the UI
// goroutine even when deliver waits for that goroutine (bubbletea's Send).
type Queue struct {
	ctx     context.Context
	deliver func(fn func())

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

// NewQueue starts the delivery goroutine. It exits when ctx is done;
// functions still pending then are dropped.
func NewQueue(ctx context.Context, deliver func(fn func())) *Queue {
	q := &Queue{ctx: ctx, deliver: deliver, wake: make(chan struct{}, 1)}
	go q.run()
	return q
}

func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			fn := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()

			if q.ctx.Err() != nil {
				return
			}
			q.deliver(fn)
		}
	}
}

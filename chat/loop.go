package chat

import (
	"context"
	"sync"
)

// Loop is the goroutine that owns conversation state. Functions posted to
// it run one at a time in post order.
type Loop struct {
	tasks chan func()
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewLoop(buffer int) *Loop {
	return &Loop{
		tasks: make(chan func(), buffer),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run executes posted functions until ctx ends or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn. It returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stop:
		return false
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stop:
		return false
	case <-l.done:
		return false
	}
}

// Flush waits until everything posted before it has run.
func (l *Loop) Flush() bool {
	ran := make(chan struct{})
	if !l.Post(func() { close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Loop) Done() <-chan struct{} { return l.done }

package reconcile

import "fmt"

// ProgressFunc receives human-readable stage messages. It is invoked from a
// single reporter goroutine, never from inside a pass.
type ProgressFunc func(stage string)

const progressBuffer = 16

// progress delivers messages to a ProgressFunc without blocking the caller.
// Messages are dropped when the buffer is full. A nil *progress is a no-op.
type progress struct {
	ch   chan string
	done chan struct{}
}

func newProgress(fn ProgressFunc) *progress {
	if fn == nil {
		return nil
	}

	p := &progress{
		ch:   make(chan string, progressBuffer),
		done: make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		for msg := range p.ch {
			fn(msg)
		}
	}()

	return p
}

func (p *progress) report(format string, args ...any) {
	if p == nil {
		return
	}

	select {
	case p.ch <- fmt.Sprintf(format, args...):
	default:
	}
}

// close stops accepting messages and waits for queued ones to be delivered.
func (p *progress) close() {
	if p == nil {
		return
	}

	close(p.ch)
	<-p.done
}

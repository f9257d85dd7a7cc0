package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// PublisherState is the lifecycle state of a Publisher.
type PublisherState int32

const (
	PublisherIdle PublisherState = iota
	PublisherRunning
	PublisherCancelling
	PublisherStopped
)

func (s PublisherState) String() string {
	switch s {
	case PublisherIdle:
		return "idle"
	case PublisherRunning:
		return "running"
	case PublisherCancelling:
		return "cancelling"
	case PublisherStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var errPublisherStarted = errors.New("publisher already started")

// PublishFunc builds and delivers one snapshot. A returned error means the
// transport failed and the publisher must stop.
type PublishFunc func(ctx context.Context) error

// Publisher calls its PublishFunc once per interval until cancelled. It owns
// its ticker; the wait between ticks selects on the cancellation context so
// Cancel never waits out the remaining interval.
type Publisher struct {
	interval  time.Duration
	immediate bool
	publish   PublishFunc

	mu     sync.Mutex // serializes Start and Cancel
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error // written before done is closed
}

// NewPublisher returns an idle publisher. When immediate is set the first
// publish happens on Start instead of after one interval.
func NewPublisher(interval time.Duration, immediate bool, publish PublishFunc) *Publisher {
	return &Publisher{
		interval:  interval,
		immediate: immediate,
		publish:   publish,
		done:      make(chan struct{}),
	}
}

// Start launches the loop and returns immediately.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State() != PublisherIdle {
		return errPublisherStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.state.Store(int32(PublisherRunning))
	// A cancelled parent context stops the loop the same way Cancel does.
	context.AfterFunc(ctx, p.markCancelling)
	go p.run(ctx)
	return nil
}

// Cancel requests the loop to stop. An idle publisher moves straight to
// Stopped.
func (p *Publisher) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.State() {
	case PublisherIdle:
		p.finish()
	case PublisherRunning:
		p.markCancelling()
		p.cancel()
	}
}

// Wait blocks until the loop has exited or timeout elapses. It reports
// whether the loop exited. A non-positive timeout waits forever.
func (p *Publisher) Wait(timeout time.Duration) bool {
	return waitTimeout(p.done, timeout)
}

func waitTimeout(ch <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		<-ch
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}

// Stop cancels and waits; see Wait.
func (p *Publisher) Stop(timeout time.Duration) bool {
	p.Cancel()
	return p.Wait(timeout)
}

// Done is closed once the publisher reaches Stopped.
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}

// Err returns the transport error that stopped the loop, or nil when it was
// cancelled. Only meaningful after Done is closed.
func (p *Publisher) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *Publisher) State() PublisherState {
	return PublisherState(p.state.Load())
}

func (p *Publisher) markCancelling() {
	p.state.CompareAndSwap(int32(PublisherRunning), int32(PublisherCancelling))
}

func (p *Publisher) finish() {
	p.once.Do(func() {
		p.state.Store(int32(PublisherStopped))
		close(p.done)
	})
}

func (p *Publisher) run(ctx context.Context) {
	defer p.cancel()
	defer func() {
		if ctx.Err() != nil {
			p.markCancelling()
		}
		p.finish()
	}()

	if p.immediate {
		if !p.tick(ctx) {
			return
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !p.tick(ctx) {
			return
		}
	}
}

// tick publishes once and reports whether the loop should continue.
func (p *Publisher) tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := p.publish(ctx); err != nil {
		if ctx.Err() == nil {
			p.err = err
		}
		return false
	}
	return ctx.Err() == nil
}

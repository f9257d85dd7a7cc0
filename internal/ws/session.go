package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lapislui/Nixkart/internal/snapshot"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrAlreadyOpen   = errors.New("session already open")
)

// Transport is the outbound half of an accepted connection.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// SnapshotBuilder produces the snapshot a session publishes.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*snapshot.Snapshot, error)
}

// SessionOptions tune one session.
type SessionOptions struct {
	Interval      time.Duration
	PublishOnOpen bool
	// CloseTimeout bounds how long Close waits for the publisher to unwind.
	CloseTimeout time.Duration
	// OnClose runs once, after teardown completes.
	OnClose func(*Session)
}

type sessionState int

const (
	sessionNew sessionState = iota
	sessionOpen
	sessionClosed
)

// Session is one live dashboard connection and its publisher.
//
// Every send goes through publishOnce under sendMu, which checks the closed
// flag first. Close sets the flag before it cancels the publisher and then
// takes sendMu once, so no send can start or still be running after Close
// returns.
type Session struct {
	id        string
	transport Transport
	builder   SnapshotBuilder
	opts      SessionOptions

	mu     sync.Mutex // guards state, pub, cancel
	state  sessionState
	pub    *Publisher
	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.Mutex
	closed atomic.Bool
	sent   atomic.Int64

	closeDone chan struct{}
}

func NewSession(id string, transport Transport, builder SnapshotBuilder, opts SessionOptions) *Session {
	return &Session{
		id:        id,
		transport: transport,
		builder:   builder,
		opts:      opts,
		closeDone: make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Sent returns the number of snapshots delivered so far.
func (s *Session) Sent() int64 { return s.sent.Load() }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Done is closed when Close has finished tearing the session down.
func (s *Session) Done() <-chan struct{} { return s.closeDone }

// Publisher returns the session's publisher, or nil before Open.
func (s *Session) Publisher() *Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pub
}

// Open starts the session's publisher and returns without blocking.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case sessionOpen:
		return ErrAlreadyOpen
	case sessionClosed:
		return ErrSessionClosed
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.pub = NewPublisher(s.opts.Interval, s.opts.PublishOnOpen, s.publishOnce)
	if err := s.pub.Start(s.ctx); err != nil {
		s.cancel()
		return fmt.Errorf("starting publisher: %w", err)
	}
	s.state = sessionOpen

	go s.watch(s.pub)
	return nil
}

// watch closes the session once its publisher stops on its own, either on a
// transport error or because the parent context was cancelled.
func (s *Session) watch(pub *Publisher) {
	<-pub.Done()
	if s.Closed() {
		return
	}
	reason := "context cancelled"
	if err := pub.Err(); err != nil {
		reason = fmt.Sprintf("send failed: %v", err)
	}
	s.Close(reason)
}

// HandleMessage processes one inbound frame. A get_data command builds and
// sends a snapshot right away; anything else is ignored. Calls from one
// reader goroutine are served in arrival order.
func (s *Session) HandleMessage(raw []byte) {
	cmd, ok := parseCommand(raw)
	if !ok {
		debugf("dashboard session %s: ignoring message %.64q", s.id, raw)
		return
	}

	s.mu.Lock()
	ctx, state := s.ctx, s.state
	s.mu.Unlock()
	if state != sessionOpen {
		return
	}

	switch cmd {
	case CmdGetData:
		if err := s.publishOnce(ctx); err != nil && !errors.Is(err, ErrSessionClosed) && ctx.Err() == nil {
			s.Close(fmt.Sprintf("send failed: %v", err))
		}
	}
}

// publishOnce builds one snapshot and sends it. Build and send happen under
// sendMu so delivery order matches production order.
func (s *Session) publishOnce(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	snap, err := s.builder.Build(ctx)
	if err != nil {
		log.Printf("dashboard session %s: partial snapshot: %v", s.id, err)
	}
	if snap == nil {
		return nil
	}
	if ctx.Err() != nil || s.closed.Load() {
		return nil
	}

	data, err := snap.Encode()
	if err != nil {
		log.Printf("dashboard session %s: encode error: %v", s.id, err)
		return nil
	}
	if err := s.transport.Send(data); err != nil {
		return err
	}
	s.sent.Add(1)
	return nil
}

// Close stops the publisher, waits for it (bounded by CloseTimeout) and
// releases the transport. It is safe to call more than once; later calls
// wait for the first to finish.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.state == sessionClosed {
		s.mu.Unlock()
		<-s.closeDone
		return
	}
	s.state = sessionClosed
	pub, cancel := s.pub, s.cancel
	s.mu.Unlock()

	s.closed.Store(true)
	if cancel != nil {
		cancel()
	}

	if pub != nil {
		pub.Cancel()
		if !pub.Wait(s.opts.CloseTimeout) {
			log.Printf("dashboard session %s: publisher did not stop within %v, abandoning it", s.id, s.opts.CloseTimeout)
		}
	}

	// Closing the transport first unblocks a write stuck past its deadline.
	if err := s.transport.Close(); err != nil {
		debugf("dashboard session %s: transport close: %v", s.id, err)
	}
	drained := make(chan struct{})
	go func() {
		s.sendMu.Lock()
		s.sendMu.Unlock()
		close(drained)
	}()
	if !waitTimeout(drained, s.opts.CloseTimeout) {
		log.Printf("dashboard session %s: in-flight send still running after %v", s.id, s.opts.CloseTimeout)
	}

	log.Printf("dashboard session %s closed: %s (sent %d)", s.id, reason, s.sent.Load())
	close(s.closeDone)

	if s.opts.OnClose != nil {
		s.opts.OnClose(s)
	}
}

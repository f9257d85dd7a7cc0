package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lapislui/Nixkart/internal/snapshot"
)

// fakeTransport records every send attempt and accepts it even after Close,
// so tests see what the session tried to send rather than what got through.
type fakeTransport struct {
	mu       sync.Mutex
	attempts int
	sends    []time.Time
	frames   [][]byte
	closed   bool
	failAt   int // 1-based attempt that fails; 0 never fails
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.failAt > 0 && t.attempts >= t.failAt {
		return errors.New("broken pipe")
	}
	t.sends = append(t.sends, time.Now())
	t.frames = append(t.frames, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

func (t *fakeTransport) times() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Time(nil), t.sends...)
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// fakeBuilder returns a fixed snapshot. When block is set, Build waits for
// release regardless of ctx; delay also ignores ctx.
type fakeBuilder struct {
	calls   atomic.Int64
	block   bool
	release chan struct{}
	delay   time.Duration
}

func (b *fakeBuilder) Build(ctx context.Context) (*snapshot.Snapshot, error) {
	b.calls.Add(1)
	if b.block {
		<-b.release
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return &snapshot.Snapshot{
		Sales: snapshot.Single([]string{"Jan"}, []float64{42}),
	}, nil
}

func newTestSession(t *testing.T, tr *fakeTransport, b SnapshotBuilder, opts SessionOptions) *Session {
	t.Helper()
	if opts.CloseTimeout == 0 {
		opts.CloseTimeout = time.Second
	}
	s := NewSession("test", tr, b, opts)
	t.Cleanup(func() { s.Close("test cleanup") })
	return s
}

func TestSessionPublishesOncePerInterval(t *testing.T) {
	const interval = 20 * time.Millisecond
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: interval})

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	time.Sleep(5*interval + interval/2)
	s.Close("done")

	n := tr.count()
	if n < 4 || n > 6 {
		t.Fatalf("sends = %d after 5.5 intervals, want about 5", n)
	}
	times := tr.times()
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < interval/2 {
			t.Errorf("send %d came %v after the previous one, want about %v", i, gap, interval)
		}
	}
}

func TestSessionNoSendAfterClose(t *testing.T) {
	const interval = 10 * time.Millisecond
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: interval})

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	time.Sleep(3 * interval)
	s.Close("done")
	before := tr.attemptCount()
	s.HandleMessage([]byte(`{"message":"get_data"}`))

	time.Sleep(5 * interval)
	if after := tr.attemptCount(); after != before {
		t.Fatalf("send attempts grew from %d to %d after Close", before, after)
	}
	if !tr.isClosed() {
		t.Error("transport not closed")
	}
	if got := s.Publisher().State(); got != PublisherStopped {
		t.Errorf("publisher state = %v, want stopped", got)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	var onClose atomic.Int32
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{
		Interval: time.Hour,
		OnClose:  func(*Session) { onClose.Add(1) },
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close("concurrent")
		}()
	}
	wg.Wait()
	s.Close("again")

	if got := onClose.Load(); got != 1 {
		t.Fatalf("OnClose ran %d times, want 1", got)
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Close returned")
	}
}

func TestSessionOpenStates(t *testing.T) {
	s := newTestSession(t, &fakeTransport{}, &fakeBuilder{}, SessionOptions{Interval: time.Hour})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Open(context.Background()); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second Open = %v, want ErrAlreadyOpen", err)
	}
	s.Close("done")
	if err := s.Open(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Open after Close = %v, want ErrSessionClosed", err)
	}
}

func TestSessionCloseBeforeOpen(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: time.Hour})
	s.Close("never opened")
	if !tr.isClosed() {
		t.Error("transport not closed")
	}
	s.HandleMessage([]byte(`{"message":"get_data"}`))
	if tr.attemptCount() != 0 {
		t.Error("closed session tried to send a snapshot")
	}
}

func TestSessionGetDataSendsImmediately(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: time.Hour})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.HandleMessage([]byte(`{"message":"get_data"}`))
	if got := tr.count(); got != 1 {
		t.Fatalf("sends = %d, want 1", got)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(tr.frames[0], &body); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	for _, f := range snapshot.Fields {
		if _, ok := body[f]; !ok {
			t.Errorf("frame missing %q", f)
		}
	}
	if s.Sent() != 1 {
		t.Errorf("Sent() = %d, want 1", s.Sent())
	}
}

func TestSessionIgnoresMalformedMessages(t *testing.T) {
	tr := &fakeTransport{}
	b := &fakeBuilder{}
	s := newTestSession(t, tr, b, SessionOptions{Interval: time.Hour})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, raw := range []string{
		``,
		`not json`,
		`[]`,
		`{"message":"GET_DATA"}`,
		`{"message":"refresh"}`,
		`{"msg":"get_data"}`,
		`{"message":42}`,
	} {
		s.HandleMessage([]byte(raw))
	}

	if tr.count() != 0 || b.calls.Load() != 0 {
		t.Fatalf("malformed messages caused %d sends and %d builds", tr.count(), b.calls.Load())
	}
	if s.Closed() {
		t.Fatal("session closed by malformed message")
	}
	if got := s.Publisher().State(); got != PublisherRunning {
		t.Fatalf("publisher state = %v, want running", got)
	}
}

// One unit is 20ms: interval 5 units, on-demand at 2, close at 13.
func TestSessionTimeline(t *testing.T) {
	const unit = 20 * time.Millisecond
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: 5 * unit})

	start := time.Now()
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	time.Sleep(2 * unit)
	s.HandleMessage([]byte(`{"message":"get_data"}`))

	time.Sleep(time.Until(start.Add(12 * unit)))
	if got := tr.count(); got != 3 {
		t.Fatalf("sends at t=12 = %d, want 3", got)
	}

	time.Sleep(time.Until(start.Add(13 * unit)))
	s.Close("t=13")
	time.Sleep(time.Until(start.Add(16 * unit)))
	if got := tr.attemptCount(); got != 3 {
		t.Fatalf("send attempts after close = %d, want 3", got)
	}

	times := tr.times()
	want := []time.Duration{2 * unit, 5 * unit, 10 * unit}
	for i, at := range times {
		got := at.Sub(start)
		if got < want[i]-unit/2 || got > want[i]+2*unit {
			t.Errorf("send %d at %v, want about %v", i, got, want[i])
		}
	}
}

func TestSessionClosesOnSendFailure(t *testing.T) {
	tr := &fakeTransport{failAt: 2}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: 10 * time.Millisecond})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session still open after send failure")
	}
	if tr.count() != 1 {
		t.Errorf("sends = %d, want 1", tr.count())
	}
}

func TestSessionGetDataFailureCloses(t *testing.T) {
	tr := &fakeTransport{failAt: 1}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: time.Hour})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.HandleMessage([]byte(`{"message":"get_data"}`))
	if !s.Closed() {
		t.Fatal("session open after failed on-demand send")
	}
}

func TestSessionCloseBoundedWithStuckBuilder(t *testing.T) {
	b := &fakeBuilder{block: true, release: make(chan struct{})}
	tr := &fakeTransport{}
	s := newTestSession(t, tr, b, SessionOptions{
		Interval:     5 * time.Millisecond,
		CloseTimeout: 30 * time.Millisecond,
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for b.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	s.Close("stuck")
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Close took %v with a stuck builder", elapsed)
	}

	close(b.release)
	time.Sleep(20 * time.Millisecond)
	if n := tr.attemptCount(); n != 0 {
		t.Fatalf("stuck build led to %d send attempts after Close", n)
	}
}

func TestSessionPublishOnOpen(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: time.Hour, PublishOnOpen: true})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for tr.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if tr.count() != 1 {
		t.Fatalf("sends = %d, want 1 right after Open", tr.count())
	}
}

func TestSessionParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTransport{}
	s := newTestSession(t, tr, &fakeBuilder{}, SessionOptions{Interval: 5 * time.Millisecond})
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	cancel()

	select {
	case <-s.Publisher().Done():
	case <-time.After(time.Second):
		t.Fatal("publisher still running after parent cancel")
	}
	if s.Publisher().Err() != nil {
		t.Errorf("Err() = %v after cancel, want nil", s.Publisher().Err())
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session still open after its publisher stopped")
	}
	if !tr.isClosed() {
		t.Error("transport not closed after parent cancel")
	}
	before := tr.attemptCount()
	s.HandleMessage([]byte(`{"message":"get_data"}`))
	if got := tr.attemptCount(); got != before {
		t.Errorf("get_data after parent cancel made %d send attempts", got-before)
	}
}

// Concurrent get_data requests race the 1ms ticker with a slow builder, so
// Close regularly lands while builds are in flight.
func TestSessionNoSendAttemptAfterCloseUnderLoad(t *testing.T) {
	getData := []byte(`{"message":"get_data"}`)
	for i := 0; i < 20; i++ {
		tr := &fakeTransport{}
		b := &fakeBuilder{delay: 2 * time.Millisecond}
		s := NewSession(fmt.Sprintf("load-%d", i), tr, b, SessionOptions{
			Interval:     time.Millisecond,
			CloseTimeout: time.Second,
		})
		if err := s.Open(context.Background()); err != nil {
			t.Fatalf("Open: %v", err)
		}

		stop := make(chan struct{})
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					s.HandleMessage(getData)
				}
			}()
		}

		time.Sleep(5 * time.Millisecond)
		s.Close("load")
		atClose := tr.attemptCount()

		time.Sleep(10 * time.Millisecond)
		close(stop)
		wg.Wait()

		if got := tr.attemptCount(); got != atClose {
			t.Fatalf("round %d: %d send attempts after Close returned", i, got-atClose)
		}
		if b.calls.Load() == 0 {
			t.Fatalf("round %d: nothing was built", i)
		}
	}
}

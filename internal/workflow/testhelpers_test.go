package workflow_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"dubber/internal/presenter"
	"dubber/internal/services/dubbing"
	"dubber/internal/workflow"
)

const waitTimeout = 2 * time.Second

type statusReply struct {
	resp dubbing.StatusResponse
	err  error
}

func running(progress int, message string) statusReply {
	return statusReply{resp: dubbing.StatusResponse{Status: dubbing.StatusRunning, Progress: progress, Message: message}}
}

func terminal(status string, progress int, message string) statusReply {
	return statusReply{resp: dubbing.StatusResponse{Status: status, Progress: progress, Message: message}}
}

func transportErr(msg string) statusReply {
	return statusReply{err: errors.New(msg)}
}

type fakeBackend struct {
	mu          sync.Mutex
	submitID    string
	submitErr   error
	submitGate  chan struct{}
	submitted   []string
	submitCalls int

	replies     []statusReply
	statusCalls int
	statusGate  chan struct{}
	statusEnter chan struct{}

	cancelErr   error
	cancelCalls int
	cancelled   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{submitID: "job-1", statusEnter: make(chan struct{}, 16)}
}

func (f *fakeBackend) Submit(ctx context.Context, req dubbing.SubmitRequest) (string, error) {
	data, _ := io.ReadAll(req.Content)
	f.mu.Lock()
	f.submitCalls++
	f.submitted = append(f.submitted, req.Filename+":"+req.Language+":"+string(data))
	gate := f.submitGate
	id, err := f.submitID, f.submitErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return id, err
}

func (f *fakeBackend) Status(ctx context.Context, jobID string) (dubbing.StatusResponse, error) {
	f.mu.Lock()
	f.statusCalls++
	var reply statusReply
	if len(f.replies) > 0 {
		reply = f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
	} else {
		reply = running(0, "")
	}
	gate := f.statusGate
	f.mu.Unlock()
	select {
	case f.statusEnter <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return dubbing.StatusResponse{}, ctx.Err()
		}
	}
	return reply.resp, reply.err
}

func (f *fakeBackend) Cancel(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	f.cancelled = append(f.cancelled, jobID)
	return f.cancelErr
}

func (f *fakeBackend) DownloadURL(jobID string) string {
	return "http://backend.test/download/" + jobID
}

func (f *fakeBackend) script(replies ...statusReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = replies
}

func (f *fakeBackend) counts() (submit, status, cancel int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.statusCalls, f.cancelCalls
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
	mu      sync.Mutex
	stops   int
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
	m.once.Do(func() { close(m.stopped) })
}

func (m *manualTicker) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

type tickerFactory struct {
	created chan *manualTicker
}

func (f *tickerFactory) fn() workflow.TickerFunc {
	return func() workflow.Ticker {
		tk := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
		f.created <- tk
		return tk
	}
}

type manualTimer struct {
	owner   *manualTimers
	f       func()
	stopped bool
	fired   bool
}

func (m *manualTimer) Stop() bool {
	m.owner.mu.Lock()
	defer m.owner.mu.Unlock()
	active := !m.stopped && !m.fired
	m.stopped = true
	return active
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
	delays []time.Duration
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) workflow.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{owner: m, f: f}
	m.timers = append(m.timers, t)
	m.delays = append(m.delays, d)
	return t
}

// fire runs every pending timer. With force it also runs stopped timers,
// standing in for a timer that fired just before Stop was called.
func (m *manualTimers) fire(force bool) int {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if t.fired || (t.stopped && !force) {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t       *testing.T
	ctrl    *workflow.Controller
	backend *fakeBackend
	mem     *presenter.Memory
	tickers *tickerFactory
	timers  *manualTimers
	clock   *fakeClock
	events  chan workflow.Event
}

func newHarness(t *testing.T, opts ...workflow.Option) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		backend: newFakeBackend(),
		mem:     presenter.NewMemory(),
		tickers: &tickerFactory{created: make(chan *manualTicker, 8)},
		timers:  &manualTimers{},
		clock:   &fakeClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)},
		events:  make(chan workflow.Event, 128),
	}
	base := []workflow.Option{
		workflow.WithTicker(h.tickers.fn()),
		workflow.WithAfterFunc(h.timers.afterFunc),
		workflow.WithClock(h.clock.Now),
		workflow.WithListener(workflow.ListenerFunc(func(e workflow.Event) { h.events <- e })),
	}
	h.ctrl = workflow.New(h.backend, h.mem, nil, append(base, opts...)...)
	t.Cleanup(h.ctrl.Close)
	return h
}

func testUpload(name string) workflow.Upload {
	return workflow.Upload{
		Filename: name,
		Size:     int64(len("payload")),
		Open:     workflow.NopCloser(strings.NewReader("payload")),
	}
}

func (h *harness) submit(name string) string {
	h.t.Helper()
	id, err := h.ctrl.Submit(context.Background(), testUpload(name), "es")
	if err != nil {
		h.t.Fatalf("Submit: %v", err)
	}
	h.expect(workflow.EventSubmitting)
	h.expect(workflow.EventSubmitted)
	return id
}

func (h *harness) ticker() *manualTicker {
	h.t.Helper()
	select {
	case tk := <-h.tickers.created:
		return tk
	case <-time.After(waitTimeout):
		h.t.Fatal("no poll ticker created")
		return nil
	}
}

func (h *harness) tick(tk *manualTicker) {
	h.t.Helper()
	select {
	case tk.ch <- h.clock.Now():
	case <-time.After(waitTimeout):
		h.t.Fatal("poll loop did not accept tick")
	}
}

// poll delivers one tick and waits for the resulting event.
func (h *harness) poll(tk *manualTicker, reply statusReply) workflow.Event {
	h.t.Helper()
	h.backend.script(reply)
	h.tick(tk)
	return h.next()
}

func (h *harness) next() workflow.Event {
	h.t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(waitTimeout):
		h.t.Fatal("timed out waiting for event")
		return workflow.Event{}
	}
}

func (h *harness) expect(kind workflow.EventKind) workflow.Event {
	h.t.Helper()
	e := h.next()
	if e.Kind != kind {
		h.t.Fatalf("event = %s, want %s (job %+v)", e.Kind, kind, e.Job)
	}
	return e
}

func (h *harness) noEvent() {
	h.t.Helper()
	select {
	case e := <-h.events:
		h.t.Fatalf("unexpected event %s", e.Kind)
	case <-time.After(30 * time.Millisecond):
	}
}

func waitStopped(t *testing.T, tk *manualTicker) {
	t.Helper()
	select {
	case <-tk.stopped:
	case <-time.After(waitTimeout):
		t.Fatal("poll ticker was not stopped")
	}
}

// assertNoTick verifies that a stopped poll loop no longer receives ticks.
func assertNoTick(t *testing.T, tk *manualTicker) {
	t.Helper()
	select {
	case tk.ch <- time.Now():
		t.Fatal("stopped poll loop accepted a tick")
	case <-time.After(30 * time.Millisecond):
	}
}

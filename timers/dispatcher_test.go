package timers

import (
	"errors"
	"sync"
	"testing"
	"time"

	"giveaway-bot/model"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}

func (c *fakeClock) waiterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

type memStore struct {
	mu       sync.Mutex
	timers   map[model.TimerKey]model.Timer
	failNext error
}

func newMemStore() *memStore {
	return &memStore{timers: make(map[model.TimerKey]model.Timer)}
}

func (s *memStore) CreateTimer(timer model.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[timer.Key()] = timer
	return nil
}

func (s *memStore) NextTimerWithin(now time.Time, horizon time.Duration) (*model.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, err
	}
	var next *model.Timer
	for _, t := range s.timers {
		t := t
		if !t.Expires.Before(now.Add(horizon)) {
			continue
		}
		if next == nil || t.Expires.Before(next.Expires) {
			next = &t
		}
	}
	return next, nil
}

func (s *memStore) GetTimer(key model.TimerKey) (*model.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memStore) DeleteTimer(key model.TimerKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	delete(s.timers, key)
	return ok, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type fireRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *fireRecorder) handle(timer model.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, timer.MessageID)
}

func (r *fireRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []string
}

func (r *fakeReporter) Report(scope string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, scope)
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testTimer(messageID string, expires time.Time) model.Timer {
	return model.Timer{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: messageID,
		AuthorID:  "a1",
		Event:     "giveaway",
		Title:     "test",
		Expires:   expires,
	}
}

func newTestDispatcher(store Store, clock Clock, reporter Reporter) (*Dispatcher, *fireRecorder) {
	d := New(store, reporter)
	d.clock = clock
	rec := &fireRecorder{}
	d.Register("giveaway", rec.handle)
	return d, rec
}

func TestDispatcherFiresInExpiryOrder(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	d, rec := newTestDispatcher(store, clock, nil)

	// The later timer is created first; the earlier one must still win.
	if err := d.CreateTimer(testTimer("late", clock.Now().Add(48*time.Hour))); err != nil {
		t.Fatalf("create late timer: %v", err)
	}
	d.Start()
	defer d.Stop()
	waitFor(t, "sleep on late timer", func() bool { return clock.waiterCount() >= 1 })

	if err := d.CreateTimer(testTimer("early", clock.Now().Add(2*time.Hour))); err != nil {
		t.Fatalf("create early timer: %v", err)
	}
	waitFor(t, "sleep on early timer", func() bool { return clock.waiterCount() >= 2 })

	clock.Advance(2 * time.Hour)
	waitFor(t, "early timer fired", func() bool { return len(rec.snapshot()) == 1 })
	waitFor(t, "sleep rescheduled on late timer", func() bool { return clock.waiterCount() >= 1 })

	clock.Advance(46 * time.Hour)
	waitFor(t, "late timer fired", func() bool { return len(rec.snapshot()) == 2 })

	fired := rec.snapshot()
	if fired[0] != "early" || fired[1] != "late" {
		t.Fatalf("fired out of order: %v", fired)
	}
	if store.count() != 0 {
		t.Fatalf("expected empty store after dispatch, have %d timers", store.count())
	}
}

func TestManualFireDispatchesExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	d, rec := newTestDispatcher(store, clock, nil)

	timer := testTimer("m1", clock.Now().Add(48*time.Hour))
	if err := d.CreateTimer(timer); err != nil {
		t.Fatalf("create timer: %v", err)
	}
	d.Start()
	defer d.Stop()
	waitFor(t, "sleep on timer", func() bool { return clock.waiterCount() >= 1 })

	if err := d.FireNow(timer.Key()); err != nil {
		t.Fatalf("fire now: %v", err)
	}
	waitFor(t, "manual fire", func() bool { return len(rec.snapshot()) == 1 })

	// A second manual fire finds no row and must not dispatch again,
	// and neither must the original deadline.
	if err := d.FireNow(timer.Key()); err != nil {
		t.Fatalf("second fire now: %v", err)
	}
	clock.Advance(48 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("expected exactly one fire, got %v", got)
	}
}

func TestCancelledTimerNeverFires(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	d, rec := newTestDispatcher(store, clock, nil)

	timer := testTimer("c1", clock.Now().Add(48*time.Hour))
	if err := d.CreateTimer(timer); err != nil {
		t.Fatalf("create timer: %v", err)
	}
	d.Start()
	defer d.Stop()
	waitFor(t, "sleep on timer", func() bool { return clock.waiterCount() >= 1 })

	if err := d.CancelTimer(timer.Key()); err != nil {
		t.Fatalf("cancel timer: %v", err)
	}
	waitFor(t, "store drained", func() bool { return store.count() == 0 })

	clock.Advance(48 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("cancelled timer fired: %v", got)
	}

	// Cancelling again is a no-op.
	if err := d.CancelTimer(timer.Key()); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
}

func TestShortTimerSkipsStore(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	d, rec := newTestDispatcher(store, clock, nil)
	d.Start()
	defer d.Stop()

	if err := d.CreateTimer(testTimer("s1", clock.Now().Add(10*time.Second))); err != nil {
		t.Fatalf("create short timer: %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("short timer reached the store")
	}
	waitFor(t, "short timer waiting", func() bool { return clock.waiterCount() >= 1 })

	clock.Advance(10 * time.Second)
	waitFor(t, "short timer fired", func() bool { return len(rec.snapshot()) == 1 })
}

func TestOverdueTimerFiresImmediately(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	d, rec := newTestDispatcher(store, clock, nil)

	// Simulates a deadline that passed while the process was down.
	overdue := testTimer("o1", clock.Now().Add(-time.Hour))
	if err := store.CreateTimer(overdue); err != nil {
		t.Fatalf("seed overdue timer: %v", err)
	}

	d.Start()
	defer d.Stop()
	waitFor(t, "overdue timer fired", func() bool { return len(rec.snapshot()) == 1 })
}

func TestLoopRestartsAfterStoreError(t *testing.T) {
	clock := newFakeClock()
	store := newMemStore()
	reporter := &fakeReporter{}
	d, rec := newTestDispatcher(store, clock, reporter)

	store.mu.Lock()
	store.failNext = errors.New("database locked")
	store.mu.Unlock()

	d.Start()
	defer d.Stop()
	waitFor(t, "error reported", func() bool { return reporter.count() == 1 })

	// The restarted loop must keep dispatching.
	if err := d.CreateTimer(testTimer("r1", clock.Now().Add(2*time.Hour))); err != nil {
		t.Fatalf("create timer: %v", err)
	}
	waitFor(t, "sleep on timer", func() bool { return clock.waiterCount() >= 1 })
	clock.Advance(2 * time.Hour)
	waitFor(t, "timer fired after restart", func() bool { return len(rec.snapshot()) == 1 })
}

package timers

import (
	"fmt"
	"sync"
	"time"

	"giveaway-bot/model"

	"github.com/rs/zerolog/log"
)

const (
	// queryHorizon caps how far ahead a single query looks. Timers further
	// out are picked up by a later requery, which also keeps one long sleep
	// from drifting across clock adjustments.
	queryHorizon = 40 * 24 * time.Hour

	// shortTimerWindow is the deadline under which a timer skips the store
	// and waits in memory. A crash inside this window loses the timer, which
	// is accepted to avoid write churn for near-immediate deadlines.
	shortTimerWindow = 60 * time.Second
)

// Handler consumes a fired timer. Handlers run on their own goroutine and
// must tolerate being called for stale messages.
type Handler func(timer model.Timer)

// Store is the durable timer backend.
type Store interface {
	CreateTimer(timer model.Timer) error
	NextTimerWithin(now time.Time, horizon time.Duration) (*model.Timer, error)
	GetTimer(key model.TimerKey) (*model.Timer, error)
	DeleteTimer(key model.TimerKey) (bool, error)
}

// Reporter receives errors that escaped the dispatch loop, so operators see
// them somewhere louder than the local log.
type Reporter interface {
	Report(scope string, err error)
}

// Dispatcher runs the single dispatch loop over the timer store. The loop
// sleeps until the nearest expiry, deletes the row, and fires the registered
// handler for the timer's event tag. Deleting before dispatch makes delivery
// at-most-once: whoever deletes the row owns the fire.
type Dispatcher struct {
	store    Store
	clock    Clock
	reporter Reporter

	mu          sync.Mutex
	handlers    map[string]Handler
	current     *model.Timer
	interrupt   chan struct{}
	interrupted bool

	wake     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds a dispatcher over the given store. A nil reporter is allowed
// and silently drops reports.
func New(store Store, reporter Reporter) *Dispatcher {
	return &Dispatcher{
		store:    store,
		clock:    systemClock{},
		reporter: reporter,
		handlers: make(map[string]Handler),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Register binds a handler to an event tag. Timers firing with an unknown
// tag are logged and dropped.
func (d *Dispatcher) Register(event string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = h
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop shuts the loop down and waits for in-flight handlers.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

// run keeps the dispatch loop alive: any error or panic is logged, reported,
// and followed by an immediate restart with fresh state.
func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		err := d.dispatchTimers()
		if err == nil {
			return
		}
		log.Error().Err(err).Msg("timer dispatch loop failed, restarting")
		d.report("timer dispatch", err)
	}
}

func (d *Dispatcher) dispatchTimers() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("timer dispatch panicked: %v", r)
		}
	}()

	for {
		timer, err := d.waitForActiveTimer()
		if err != nil {
			return err
		}
		if timer == nil {
			return nil
		}

		interrupt := d.setCurrent(timer)
		now := d.clock.Now()
		if timer.Expires.After(now) {
			select {
			case <-d.clock.After(timer.Expires.Sub(now)):
			case <-interrupt:
				// The current timer was cancelled or fired manually;
				// requery for the new nearest expiry.
				continue
			case <-d.wake:
				// Schedule changed underneath the sleep; requery.
				continue
			case <-d.done:
				return nil
			}
		}

		deleted, err := d.store.DeleteTimer(timer.Key())
		if err != nil {
			return err
		}
		if deleted {
			d.dispatch(*timer)
		}
	}
}

// waitForActiveTimer blocks until the store holds a timer inside the query
// horizon, or until the dispatcher stops (nil, nil).
func (d *Dispatcher) waitForActiveTimer() (*model.Timer, error) {
	for {
		timer, err := d.store.NextTimerWithin(d.clock.Now(), queryHorizon)
		if err != nil {
			return nil, err
		}
		if timer != nil {
			return timer, nil
		}

		d.clearCurrent()
		select {
		case <-d.wake:
		case <-d.done:
			return nil, nil
		}
	}
}

// CreateTimer persists and schedules a timer. Deadlines inside the short
// window never touch the store and fire from memory instead.
func (d *Dispatcher) CreateTimer(timer model.Timer) error {
	delta := timer.Expires.Sub(d.clock.Now())
	if delta <= shortTimerWindow {
		d.wg.Add(1)
		go d.fireShort(timer, delta)
		return nil
	}

	if err := d.store.CreateTimer(timer); err != nil {
		return fmt.Errorf("failed to schedule timer: %w", err)
	}
	d.interruptIfEarlier(timer.Expires)
	d.notifyWake()
	return nil
}

func (d *Dispatcher) fireShort(timer model.Timer, delay time.Duration) {
	defer d.wg.Done()
	if delay > 0 {
		select {
		case <-d.clock.After(delay):
		case <-d.done:
			return
		}
	}
	d.dispatch(timer)
}

// FireNow fires a durable timer ahead of its deadline. The row is deleted
// first; if it was already gone the natural expiry won the race and nothing
// fires twice. An unknown key is a no-op.
func (d *Dispatcher) FireNow(key model.TimerKey) error {
	timer, err := d.store.GetTimer(key)
	if err != nil {
		return err
	}
	if timer == nil {
		return nil
	}
	deleted, err := d.store.DeleteTimer(key)
	if err != nil {
		return err
	}
	if deleted {
		d.dispatch(*timer)
	}
	d.interruptIfCurrent(key)
	return nil
}

// CancelTimer removes a pending timer so it never fires. Cancelling an
// already-fired or unknown timer is a no-op.
func (d *Dispatcher) CancelTimer(key model.TimerKey) error {
	if _, err := d.store.DeleteTimer(key); err != nil {
		return err
	}
	d.interruptIfCurrent(key)
	d.notifyWake()
	return nil
}

func (d *Dispatcher) dispatch(timer model.Timer) {
	d.mu.Lock()
	h := d.handlers[timer.Event]
	d.mu.Unlock()
	if h == nil {
		log.Warn().
			Str("event", timer.Event).
			Str("message_id", timer.MessageID).
			Msg("no handler registered for timer event")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("timer handler panicked: %v", r)
				log.Error().Err(err).Str("event", timer.Event).Msg("timer handler failed")
				d.report("timer handler", err)
			}
		}()
		h(timer)
	}()
}

func (d *Dispatcher) setCurrent(t *model.Timer) <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = t
	d.interrupt = make(chan struct{})
	d.interrupted = false
	return d.interrupt
}

func (d *Dispatcher) clearCurrent() {
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
}

func (d *Dispatcher) interruptIfCurrent(key model.TimerKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil && d.current.Key() == key {
		d.interruptLocked()
	}
}

func (d *Dispatcher) interruptIfEarlier(expires time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil && expires.Before(d.current.Expires) {
		d.interruptLocked()
	}
}

func (d *Dispatcher) interruptLocked() {
	if d.interrupt != nil && !d.interrupted {
		close(d.interrupt)
		d.interrupted = true
	}
	d.current = nil
}

func (d *Dispatcher) notifyWake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) report(scope string, err error) {
	if d.reporter != nil {
		d.reporter.Report(scope, err)
	}
}

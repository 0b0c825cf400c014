package runtime

import (
	"errors"
	"sync"
	"time"
)

// Debouncer coalesces rapid input events. Each input keeps only its latest
// value, applied once no newer event arrived for the delay.
type Debouncer struct {
	machine *Machine
	delay   time.Duration
	onError func(id string, err error)

	mu      sync.Mutex
	pending map[string]interface{}
	timers  map[string]*time.Timer
	order   []string
}

// NewDebouncer wraps m. onError, if set, receives errors from values
// applied by the timer.
func NewDebouncer(m *Machine, delay time.Duration, onError func(id string, err error)) *Debouncer {
	return &Debouncer{
		machine: m,
		delay:   delay,
		onError: onError,
		pending: make(map[string]interface{}),
		timers:  make(map[string]*time.Timer),
	}
}

// Set records value for id and restarts the input's delay.
func (d *Debouncer) Set(id string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schedule(id, value)
}

func (d *Debouncer) schedule(id string, value interface{}) {
	if _, ok := d.pending[id]; !ok {
		d.order = append(d.order, id)
	}
	d.pending[id] = value
	if t, ok := d.timers[id]; ok {
		t.Stop()
	}
	d.timers[id] = time.AfterFunc(d.delay, func() { d.fire(id) })
}

func (d *Debouncer) take(id string) (interface{}, bool) {
	value, ok := d.pending[id]
	if !ok {
		return nil, false
	}
	delete(d.pending, id)
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
	for i, queued := range d.order {
		if queued == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return value, true
}

func (d *Debouncer) fire(id string) {
	d.mu.Lock()
	value, ok := d.take(id)
	d.mu.Unlock()
	if !ok {
		return
	}
	if err := d.apply(id, value); err != nil && d.onError != nil {
		d.onError(id, err)
	}
}

// apply sets the value, rescheduling it when the machine is busy unless a
// newer value arrived meanwhile.
func (d *Debouncer) apply(id string, value interface{}) error {
	err := d.machine.SetInput(id, value)
	if !errors.Is(err, ErrRecomputing) {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, newer := d.pending[id]; !newer {
		d.schedule(id, value)
	}
	return nil
}

// Flush applies every pending value now, in the order inputs first became
// pending.
func (d *Debouncer) Flush() error {
	d.mu.Lock()
	ids := append([]string(nil), d.order...)
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		value, _ := d.take(id)
		values = append(values, value)
	}
	d.mu.Unlock()

	var errs []error
	for i, id := range ids {
		if err := d.apply(id, values[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports how many inputs wait to be applied.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop drops every pending value.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	d.pending = make(map[string]interface{})
	d.timers = make(map[string]*time.Timer)
	d.order = nil
}

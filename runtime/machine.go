// Package runtime drives a compiled dashboard: it owns the filter state,
// propagates linked inputs, re-evaluates visibility and re-renders the
// charts an input change affects.
package runtime

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/internal/logging"
	"github.com/crosstab/crosstab-go/pipeline"
	"github.com/crosstab/crosstab-go/templating"
)

// MachineState is the phase of a machine.
type MachineState int32

const (
	StateIdle MachineState = iota
	StateRecomputing
)

func (s MachineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecomputing:
		return "recomputing"
	}
	return "unknown"
}

// ErrRecomputing is returned for a transition attempted while another one
// is in flight, including one started from inside a callback.
var ErrRecomputing = errors.New("runtime: recomputation in progress")

// Renderer draws one chart. Each charting library registers its own.
type Renderer interface {
	Render(chartID string, data pipeline.SeriesData)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(chartID string, data pipeline.SeriesData)

func (f RenderFunc) Render(chartID string, data pipeline.SeriesData) {
	f(chartID, data)
}

// VisibilityFunc is called when a chart or element is shown or hidden.
type VisibilityFunc func(id string, visible bool)

// Option configures a Machine.
type Option func(*Machine)

// WithRenderer routes charts of library to r. The empty library is the
// fallback for charts whose library has no renderer.
func WithRenderer(library string, r Renderer) Option {
	return func(m *Machine) {
		m.renderers[library] = r
	}
}

// WithVisibility sets the visibility callback.
func WithVisibility(fn VisibilityFunc) Option {
	return func(m *Machine) {
		m.onVisibility = fn
	}
}

// WithLogger sets the log entry.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// Machine is the runtime state machine of one dashboard page. State,
// Visible and Title may be called from callbacks and from other
// goroutines; transitions may not be nested.
type Machine struct {
	program      *Program
	renderers    map[string]Renderer
	onVisibility VisibilityFunc
	log          *logrus.Entry

	phase atomic.Int32

	// mu guards writes to state and visible, and reads made outside a
	// transition. Only the goroutine holding the phase writes.
	mu      sync.RWMutex
	state   inputs.State
	visible map[string]bool
}

// NewMachine creates an idle machine holding the default state. Nothing is
// rendered until Start.
func NewMachine(program *Program, opts ...Option) *Machine {
	m := &Machine{
		program:   program,
		renderers: make(map[string]Renderer),
		log:       logging.Discard(),
		visible:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state = m.initialState()
	return m
}

// Phase reports whether the machine is idle or recomputing.
func (m *Machine) Phase() MachineState {
	return MachineState(m.phase.Load())
}

func (m *Machine) enter() bool {
	return m.phase.CompareAndSwap(int32(StateIdle), int32(StateRecomputing))
}

func (m *Machine) leave() {
	m.phase.Store(int32(StateIdle))
}

func (m *Machine) initialState() inputs.State {
	state := m.program.registry.DefaultState()
	m.program.graph.Propagate(state, m.program.registry.IDs()...)
	return state
}

// Start evaluates every visibility rule, reports it, and renders every
// visible chart.
func (m *Machine) Start() error {
	if !m.enter() {
		return ErrRecomputing
	}
	defer m.leave()

	m.replaceState(m.initialState())
	m.renderAll()
	return nil
}

// Reset restores the default state and redraws everything exactly as
// Start does.
func (m *Machine) Reset() error {
	if !m.enter() {
		return ErrRecomputing
	}
	defer m.leave()

	m.replaceState(m.initialState())
	m.log.Debug("reset to defaults")
	m.renderAll()
	return nil
}

func (m *Machine) replaceState(state inputs.State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Machine) setVisible(id string, shown bool) {
	m.mu.Lock()
	m.visible[id] = shown
	m.mu.Unlock()
}

func (m *Machine) renderAll() {
	for _, r := range m.program.rules {
		shown := r.predicate(m.state)
		m.setVisible(r.id, shown)
		m.notify(r.id, shown)
	}
	for _, c := range m.program.charts {
		if m.isVisible(c) {
			m.render(c)
		}
	}
}

// SetInput writes one input value and redraws what it affects. Values are
// normalized to the input's kind, and a linked child only accepts the
// options its parents allow. An invalid value leaves the state untouched.
func (m *Machine) SetInput(id string, value interface{}) error {
	if !m.enter() {
		return ErrRecomputing
	}
	defer m.leave()

	normalized, err := m.program.registry.Normalize(id, value)
	if err != nil {
		return err
	}
	if !m.program.graph.Allows(id, m.state, normalized) {
		return &inputs.InvalidValueError{ID: id, Value: value, Reason: "not an option for the selected parent values"}
	}
	m.mu.Lock()
	m.state[id] = normalized
	changed := m.program.graph.Propagate(m.state, id)
	m.mu.Unlock()
	dirty := make(map[string]struct{}, len(changed))
	for _, d := range changed {
		dirty[d] = struct{}{}
	}

	shown := make(map[string]bool)
	for _, r := range m.program.rules {
		if !r.reads(dirty) {
			continue
		}
		now := r.predicate(m.state)
		if now == m.visible[r.id] {
			continue
		}
		m.setVisible(r.id, now)
		if now {
			shown[r.id] = true
		}
		m.notify(r.id, now)
	}

	rendered := 0
	for _, c := range m.program.charts {
		if !m.isVisible(c) {
			continue
		}
		if !shown[c.id] && !c.affectedBy(dirty) {
			continue
		}
		m.render(c)
		rendered++
	}

	m.log.WithFields(logrus.Fields{
		"input":    id,
		"dirty":    changed,
		"rendered": rendered,
	}).Debug("input changed")
	return nil
}

func (c *chartProgram) affectedBy(dirty map[string]struct{}) bool {
	for id := range dirty {
		if _, ok := c.inputs[id]; ok {
			return true
		}
	}
	return false
}

func (m *Machine) isVisible(c *chartProgram) bool {
	return c.rule == nil || m.visible[c.id]
}

func (m *Machine) notify(id string, visible bool) {
	if m.onVisibility != nil {
		m.onVisibility(id, visible)
	}
}

func (m *Machine) render(c *chartProgram) {
	r, ok := m.renderers[c.library]
	if !ok {
		r, ok = m.renderers[""]
	}
	if !ok {
		m.log.WithFields(logrus.Fields{"chart": c.id, "library": c.library}).Warn("no renderer for library")
		return
	}
	data := c.pipeline.Run(m.state, c.asset)
	data.Title = m.renderTemplate(c.id, c.title)
	r.Render(c.id, data)
}

// renderTemplate resolves chart and page titles. Titles have no group, so
// only TitleMap and state apply; series names resolve group keys in the
// pipeline.
func (m *Machine) renderTemplate(owner, text string) string {
	if text == "" {
		return ""
	}
	out, warnings := templating.Render(text, templating.Context{
		TitleMap: m.program.bundle.TitleMap,
		State:    m.state,
	})
	for _, w := range warnings {
		m.log.WithField("chart", owner).Debug(w.String())
	}
	return out
}

// Title renders the dashboard title against the current state.
func (m *Machine) Title() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.renderTemplate("", m.program.bundle.Title)
}

// State returns a copy of the filter state.
func (m *Machine) State() inputs.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Visible reports whether a chart or element is shown. Items without a
// visibility rule are always shown.
func (m *Machine) Visible(id string) bool {
	m.mu.RLock()
	shown, ok := m.visible[id]
	m.mu.RUnlock()
	if ok {
		return shown
	}
	for _, r := range m.program.rules {
		if r.id == id {
			return false
		}
	}
	return true
}

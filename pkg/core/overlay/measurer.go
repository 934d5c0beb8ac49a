package overlay

import (
	"sync"

	"go.uber.org/zap"
)

// CellMeasurer tracks the size of one anchor cell and reports changes to subscribers.
// Only one anchor is observed at a time.
type CellMeasurer struct {
	logger *zap.Logger

	mu      sync.Mutex
	anchor  Anchor
	release func()
	gen     int
	box     Box
	subs    map[int]func(Box)
	nextSub int
}

// NewCellMeasurer creates a measurer that is not yet observing anything
func NewCellMeasurer(logger *zap.Logger) *CellMeasurer {
	return &CellMeasurer{logger: logger, subs: make(map[int]func(Box))}
}

// Observe disposes of any previous observation, measures anchor immediately and keeps
// the measurement fresh as the anchor's layout changes.
func (m *CellMeasurer) Observe(anchor Anchor) Box {
	m.mu.Lock()
	m.releaseLocked()
	m.gen++
	gen := m.gen

	rect, err := anchor.Rect()
	if err != nil {
		m.mu.Unlock()
		m.logger.Debug("Anchor not measurable, not observing", zap.Error(err))
		return Box{}
	}
	m.anchor = anchor
	m.box = rect.Box()
	box := m.box
	m.mu.Unlock()

	release := anchor.OnLayoutChange(func() { m.remeasure(gen) })

	m.mu.Lock()
	if m.gen != gen {
		// re-observed or stopped while registering
		m.mu.Unlock()
		release()
		return box
	}
	m.release = release
	m.mu.Unlock()

	m.notify(box)
	return box
}

// Box returns the last reported measurement
func (m *CellMeasurer) Box() Box {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.box
}

// Observing reports whether an anchor is currently observed
func (m *CellMeasurer) Observing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.anchor != nil
}

// Subscribe registers fn to receive every new measurement
func (m *CellMeasurer) Subscribe(fn func(Box)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Stop releases the current observation
func (m *CellMeasurer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.gen++
}

func (m *CellMeasurer) releaseLocked() {
	if m.release != nil {
		m.release()
		m.release = nil
	}
	m.anchor = nil
}

func (m *CellMeasurer) remeasure(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.anchor == nil {
		m.mu.Unlock()
		return
	}
	rect, err := m.anchor.Rect()
	if err != nil {
		m.releaseLocked()
		m.gen++
		m.mu.Unlock()
		m.logger.Debug("Anchor lost, measurement stopped", zap.Error(err))
		return
	}
	box := rect.Box()
	if box == m.box {
		m.mu.Unlock()
		return
	}
	m.box = box
	m.mu.Unlock()

	m.notify(box)
}

func (m *CellMeasurer) notify(box Box) {
	m.mu.Lock()
	fns := make([]func(Box), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(box)
	}
}

package overlay

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ComputePosition places a panel just below its anchor, in page coordinates
func ComputePosition(anchor Rect, scroll Point, offset Offset) Point {
	return Point{
		Top:  anchor.Top + anchor.Height + scroll.Top + offset.Y,
		Left: anchor.Left + scroll.Left + offset.X,
	}
}

// Option configures positioners and overlays
type Option func(*options)

type options struct {
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

func buildOptions(opts []Option) options {
	o := options{
		clock:    clock.New(),
		interval: DefaultThrottleInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock driving the throttle
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithThrottleInterval sets the minimum gap between recomputations
func WithThrottleInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Positioner keeps a floating panel's position in sync with its anchor while visible
type Positioner struct {
	viewport Viewport
	offset   Offset
	logger   *zap.Logger
	throttle *Throttler

	mu       sync.Mutex
	anchor   Anchor
	visible  bool
	closed   bool
	pos      Point
	removers []func()
	updates  int
}

// NewPositioner creates a hidden positioner for anchor
func NewPositioner(viewport Viewport, anchor Anchor, offset Offset, opts ...Option) *Positioner {
	o := buildOptions(opts)
	p := &Positioner{
		viewport: viewport,
		anchor:   anchor,
		offset:   offset,
		logger:   o.logger,
	}
	p.throttle = NewThrottler(o.clock, o.interval, p.update)
	return p
}

// SetVisible shows or hides the panel. Showing computes the position immediately and
// starts tracking scroll and resize; hiding stops tracking.
func (p *Positioner) SetVisible(visible bool) {
	p.mu.Lock()
	if p.closed || p.visible == visible {
		p.mu.Unlock()
		return
	}
	p.visible = visible
	if !visible {
		removers := p.removers
		p.removers = nil
		p.mu.Unlock()
		for _, remove := range removers {
			remove()
		}
		p.throttle.Cancel()
		return
	}
	p.mu.Unlock()

	p.update()

	onMove := p.throttle.Trigger
	removers := []func(){
		p.viewport.AddListener(EventScroll, onMove),
		p.viewport.AddListener(EventResize, onMove),
	}

	p.mu.Lock()
	if !p.visible || p.closed {
		p.mu.Unlock()
		for _, remove := range removers {
			remove()
		}
		return
	}
	p.removers = removers
	p.mu.Unlock()
}

// Visible reports whether the panel is shown
func (p *Positioner) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Position returns the last computed position
func (p *Positioner) Position() Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Updates returns how many times the position has been recomputed
func (p *Positioner) Updates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updates
}

// SetAnchor moves the panel to a new anchor, repositioning it at once if shown
func (p *Positioner) SetAnchor(anchor Anchor) {
	p.mu.Lock()
	p.anchor = anchor
	shown := p.visible && !p.closed
	p.mu.Unlock()

	if shown {
		p.update()
	}
}

// Close hides the panel for good, removing listeners and any pending recomputation
func (p *Positioner) Close() {
	p.mu.Lock()
	p.closed = true
	p.visible = false
	removers := p.removers
	p.removers = nil
	p.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	p.throttle.Cancel()
}

func (p *Positioner) update() {
	p.mu.Lock()
	anchor := p.anchor
	p.mu.Unlock()

	rect, err := anchor.Rect()
	if err != nil {
		// keep the last position; the anchor may come back
		p.logger.Debug("Anchor not measurable, position unchanged", zap.Error(err))
		return
	}
	scroll := p.viewport.Scroll()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.visible {
		return
	}
	p.pos = ComputePosition(rect, scroll, p.offset)
	p.updates++
}

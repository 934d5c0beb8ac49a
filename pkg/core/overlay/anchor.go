package overlay

import (
	"errors"
	"sync"
)

// ErrDetached is returned when an anchor is no longer part of the layout
var ErrDetached = errors.New("anchor detached")

// Box is the measured size of a cell
type Box struct {
	Width  float64
	Height float64
}

// Rect is an on-screen rectangle relative to the viewport
type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

// Box returns the rectangle's size
func (r Rect) Box() Box {
	return Box{Width: r.Width, Height: r.Height}
}

// Point is a page position
type Point struct {
	Top  float64
	Left float64
}

// Offset shifts a floating panel away from its anchor
type Offset struct {
	X float64
	Y float64
}

// Anchor is a handle on a laid-out cell that overlays are positioned against
type Anchor interface {
	// Rect returns the anchor's current rectangle, or ErrDetached
	Rect() (Rect, error)

	// OnLayoutChange registers fn to run whenever the anchor's layout may have changed.
	// The returned function removes the registration.
	OnLayoutChange(fn func()) (cancel func())
}

// Cell is an in-memory Anchor whose rectangle is set explicitly
type Cell struct {
	mu        sync.Mutex
	rect      Rect
	detached  bool
	listeners map[int]func()
	next      int
}

// NewCell creates an attached cell at rect
func NewCell(rect Rect) *Cell {
	return &Cell{rect: rect, listeners: make(map[int]func())}
}

func (c *Cell) Rect() (Rect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return Rect{}, ErrDetached
	}
	return c.rect, nil
}

func (c *Cell) OnLayoutChange(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// SetRect moves or resizes the cell and notifies observers
func (c *Cell) SetRect(rect Rect) {
	c.mu.Lock()
	c.rect = rect
	c.detached = false
	c.mu.Unlock()
	c.dispatch()
}

// Detach removes the cell from the layout and notifies observers
func (c *Cell) Detach() {
	c.mu.Lock()
	c.detached = true
	c.mu.Unlock()
	c.dispatch()
}

// ListenerCount returns the number of registered layout observers
func (c *Cell) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *Cell) dispatch() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// gridCell is an anchor for the cell at (row, col) of a grid whose first cell is origin.
// All cells share the origin's size.
type gridCell struct {
	origin Anchor
	row    int
	col    int
}

// CellAt returns an anchor for the cell at row and col counted from origin
func CellAt(origin Anchor, row, col int) Anchor {
	return gridCell{origin: origin, row: row, col: col}
}

func (g gridCell) Rect() (Rect, error) {
	base, err := g.origin.Rect()
	if err != nil {
		return Rect{}, err
	}
	return Rect{
		Top:    base.Top + float64(g.row)*base.Height,
		Left:   base.Left + float64(g.col)*base.Width,
		Width:  base.Width,
		Height: base.Height,
	}, nil
}

func (g gridCell) OnLayoutChange(fn func()) func() {
	return g.origin.OnLayoutChange(fn)
}

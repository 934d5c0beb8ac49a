package overlay

import "sync"

// EventKind is a viewport event that can move anchored content
type EventKind string

const (
	EventScroll EventKind = "scroll"
	EventResize EventKind = "resize"
)

// Viewport is the scrollable area overlays are drawn in
type Viewport interface {
	Scroll() Point
	AddListener(kind EventKind, fn func()) (remove func())
}

// Window is an in-memory Viewport driven by explicit scroll and resize calls
type Window struct {
	mu        sync.Mutex
	scroll    Point
	listeners map[EventKind]map[int]func()
	next      int
}

// NewWindow creates a window scrolled to the origin
func NewWindow() *Window {
	return &Window{listeners: make(map[EventKind]map[int]func())}
}

func (w *Window) Scroll() Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scroll
}

func (w *Window) AddListener(kind EventKind, fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listeners[kind] == nil {
		w.listeners[kind] = make(map[int]func())
	}
	id := w.next
	w.next++
	w.listeners[kind][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.listeners[kind], id)
		})
	}
}

// ScrollTo moves the window and dispatches a scroll event
func (w *Window) ScrollTo(p Point) {
	w.mu.Lock()
	w.scroll = p
	w.mu.Unlock()
	w.dispatch(EventScroll)
}

// Resize dispatches a resize event
func (w *Window) Resize() {
	w.dispatch(EventResize)
}

// ListenerCount returns the number of listeners registered for kind
func (w *Window) ListenerCount(kind EventKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners[kind])
}

func (w *Window) dispatch(kind EventKind) {
	w.mu.Lock()
	fns := make([]func(), 0, len(w.listeners[kind]))
	for _, fn := range w.listeners[kind] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

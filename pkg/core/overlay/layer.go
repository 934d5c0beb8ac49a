package overlay

import (
	"slices"
	"sync"
)

// PanelView is a visible floating panel as drawn by the layer
type PanelView struct {
	ID       int
	Position Point
	Lines    []string
}

type mountedPanel struct {
	positioner *Positioner
	lines      []string
}

// Layer is the top-level render target for floating panels. Panels drawn here are never
// clipped by the grid that anchors them.
type Layer struct {
	mu     sync.Mutex
	panels map[int]mountedPanel
	next   int
}

// NewLayer creates an empty layer
func NewLayer() *Layer {
	return &Layer{panels: make(map[int]mountedPanel)}
}

// Mount adds a panel whose placement and visibility follow p
func (l *Layer) Mount(p *Positioner, lines []string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.panels[l.next] = mountedPanel{positioner: p, lines: slices.Clone(lines)}
	return l.next
}

// SetLines replaces the text of a mounted panel
func (l *Layer) SetLines(id int, lines []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.panels[id]; ok {
		p.lines = slices.Clone(lines)
		l.panels[id] = p
	}
}

// Unmount removes a panel
func (l *Layer) Unmount(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.panels, id)
}

// Len returns the number of mounted panels, visible or not
func (l *Layer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.panels)
}

// Visible returns the panels currently shown, in mount order
func (l *Layer) Visible() []PanelView {
	l.mu.Lock()
	ids := make([]int, 0, len(l.panels))
	for id := range l.panels {
		ids = append(ids, id)
	}
	panels := make(map[int]mountedPanel, len(l.panels))
	for id, p := range l.panels {
		panels[id] = p
	}
	l.mu.Unlock()

	slices.Sort(ids)
	views := make([]PanelView, 0, len(ids))
	for _, id := range ids {
		p := panels[id]
		if !p.positioner.Visible() {
			continue
		}
		views = append(views, PanelView{
			ID:       id,
			Position: p.positioner.Position(),
			Lines:    slices.Clone(p.lines),
		})
	}
	return views
}

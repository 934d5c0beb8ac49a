package overlay

import (
	"strconv"
	"sync"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// detailOffset keeps detail panels clear of the indicator dot
var detailOffset = Offset{X: 0, Y: 2}

// Region is the laid-out area of one indicator, relative to the grid's first day cell
type Region struct {
	MemberID  int
	Name      string
	Row       int
	StartDate int
	EndDate   int
	Left      float64
	Top       float64
	Width     float64
	Height    float64
	Dot       string
	Count     int
	Lines     []string
}

func rowFor(grid model.RosterGrid, memberID int, name string) int {
	if memberID != 0 {
		return grid.RowIndex(memberID)
	}
	for i, r := range grid.Rows {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// BuildViolationIndicators lays out one region per nurse and start date. Violations of
// unknown nurses or days outside the month are not drawn.
func BuildViolationIndicators(grid model.RosterGrid, issues []model.RuleViolation, cell Box) []Region {
	days := grid.Days()

	type key struct{ row, start int }
	index := make(map[key]int)
	var regions []Region

	for _, v := range issues {
		row := rowFor(grid, v.MemberID, v.Name)
		if row < 0 || v.StartDate < 1 || v.StartDate > days {
			continue
		}
		end := min(v.End(), days)

		k := key{row, v.StartDate}
		i, ok := index[k]
		if !ok {
			i = len(regions)
			index[k] = i
			regions = append(regions, Region{
				MemberID:  grid.Rows[row].MemberID,
				Name:      grid.Rows[row].Name,
				Row:       row,
				StartDate: v.StartDate,
				EndDate:   end,
			})
		}
		r := &regions[i]
		r.EndDate = max(r.EndDate, end)
		r.Count++
		r.Lines = append(r.Lines, "• "+v.Message)
	}

	for i := range regions {
		r := &regions[i]
		span := max(1, r.EndDate-r.StartDate+1)
		r.Width = float64(span) * cell.Width
		r.Height = cell.Height
		r.Left = float64(r.StartDate-1) * cell.Width
		r.Top = float64(r.Row) * cell.Height
		r.Dot = strconv.Itoa(r.Count)
	}
	return regions
}

// statusDot is the single-letter label drawn for a request state
func statusDot(s model.RequestState) string {
	switch s {
	case model.RequestAccepted:
		return "A"
	case model.RequestHold:
		return "H"
	case model.RequestDenied:
		return "D"
	}
	return "?"
}

// BuildRequestIndicators lays out one single-cell region per request
func BuildRequestIndicators(grid model.RosterGrid, requests []model.RequestStatus, cell Box) []Region {
	days := grid.Days()
	regions := make([]Region, 0, len(requests))
	for _, req := range requests {
		row := grid.RowIndex(req.MemberID)
		if row < 0 || req.Date < 1 || req.Date > days {
			continue
		}
		regions = append(regions, Region{
			MemberID:  req.MemberID,
			Name:      grid.Rows[row].Name,
			Row:       row,
			StartDate: req.Date,
			EndDate:   req.Date,
			Left:      float64(req.Date-1) * cell.Width,
			Top:       float64(row) * cell.Height,
			Width:     cell.Width,
			Height:    cell.Height,
			Dot:       statusDot(req.Status),
			Count:     1,
			Lines:     []string{"[" + string(req.Status) + "] " + req.Message},
		})
	}
	return regions
}

// Indicator is a drawn region with its own hover-driven detail panel. It survives
// relayouts of its overlay, keeping its hover state.
type Indicator struct {
	positioner *Positioner
	layer      *Layer
	panelID    int

	mu     sync.Mutex
	region Region
}

// Region returns the indicator's current layout
func (i *Indicator) Region() Region {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.region
}

// Hover shows the detail panel while the pointer is over the indicator
func (i *Indicator) Hover(over bool) {
	i.positioner.SetVisible(over)
}

// DetailVisible reports whether the detail panel is shown
func (i *Indicator) DetailVisible() bool {
	return i.positioner.Visible()
}

// DetailPosition returns where the detail panel is drawn
func (i *Indicator) DetailPosition() Point {
	return i.positioner.Position()
}

func (i *Indicator) relayout(r Region, anchor Anchor) {
	i.mu.Lock()
	i.region = r
	i.mu.Unlock()

	i.layer.SetLines(i.panelID, r.Lines)
	i.positioner.SetAnchor(anchor)
}

func (i *Indicator) close() {
	i.layer.Unmount(i.panelID)
	i.positioner.Close()
}

// indicatorKey identifies an indicator across relayouts. n tells apart regions that share
// a nurse and start date.
type indicatorKey struct {
	memberID int
	start    int
	n        int
}

// Overlay draws indicators of T over a roster grid and keeps them sized to the grid's cells
type Overlay[T any] struct {
	layer    *Layer
	viewport Viewport
	origin   Anchor
	opts     []Option
	layout   func(model.RosterGrid, []T, Box) []Region
	measurer *CellMeasurer
	unsub    func()

	mu         sync.Mutex
	grid       model.RosterGrid
	items      []T
	hasData    bool
	indicators []*Indicator
	byKey      map[indicatorKey]*Indicator
}

// ViolationOverlay draws rule violations
type ViolationOverlay = Overlay[model.RuleViolation]

// RequestOverlay draws request statuses
type RequestOverlay = Overlay[model.RequestStatus]

// NewViolationOverlay creates an overlay for violations over the grid whose first day cell is origin
func NewViolationOverlay(layer *Layer, viewport Viewport, origin Anchor, opts ...Option) *ViolationOverlay {
	return newOverlay(layer, viewport, origin, BuildViolationIndicators, opts)
}

// NewRequestOverlay creates an overlay for request statuses over the grid whose first day cell is origin
func NewRequestOverlay(layer *Layer, viewport Viewport, origin Anchor, opts ...Option) *RequestOverlay {
	return newOverlay(layer, viewport, origin, BuildRequestIndicators, opts)
}

func newOverlay[T any](layer *Layer, viewport Viewport, origin Anchor, layout func(model.RosterGrid, []T, Box) []Region, opts []Option) *Overlay[T] {
	o := buildOptions(opts)
	ov := &Overlay[T]{
		layer:    layer,
		viewport: viewport,
		origin:   origin,
		opts:     opts,
		layout:   layout,
		measurer: NewCellMeasurer(o.logger),
		byKey:    make(map[indicatorKey]*Indicator),
	}
	ov.unsub = ov.measurer.Subscribe(ov.relayout)
	ov.measurer.Observe(origin)
	return ov
}

// Update redraws the overlay for grid and items. Indicators for the same nurse and start
// date as before are kept, so a shown detail panel stays shown.
func (o *Overlay[T]) Update(grid model.RosterGrid, items []T) []*Indicator {
	o.mu.Lock()
	o.grid = grid.Clone()
	o.items = append([]T(nil), items...)
	o.hasData = true
	o.mu.Unlock()

	return o.redraw(o.measurer.Box())
}

// Indicators returns the indicators currently drawn
func (o *Overlay[T]) Indicators() []*Indicator {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Indicator(nil), o.indicators...)
}

// Close removes every indicator and stops measuring
func (o *Overlay[T]) Close() {
	o.unsub()
	o.measurer.Stop()

	o.mu.Lock()
	old := o.indicators
	o.indicators = nil
	o.byKey = make(map[indicatorKey]*Indicator)
	o.hasData = false
	o.mu.Unlock()

	for _, ind := range old {
		ind.close()
	}
}

func (o *Overlay[T]) relayout(box Box) {
	o.mu.Lock()
	ready := o.hasData
	o.mu.Unlock()
	if ready {
		o.redraw(box)
	}
}

// redraw lays out the regions for box, moving existing indicators in place and only
// creating or closing the ones whose key appeared or disappeared
func (o *Overlay[T]) redraw(box Box) []*Indicator {
	o.mu.Lock()
	regions := o.layout(o.grid, o.items, box)

	stale := o.byKey
	next := make(map[indicatorKey]*Indicator, len(regions))
	drawn := make([]*Indicator, 0, len(regions))
	for _, r := range regions {
		k := indicatorKey{memberID: r.MemberID, start: r.StartDate}
		for next[k] != nil {
			k.n++
		}
		anchor := CellAt(o.origin, r.Row, r.StartDate-1)

		ind, ok := stale[k]
		if ok {
			delete(stale, k)
			ind.relayout(r, anchor)
		} else {
			p := NewPositioner(o.viewport, anchor, detailOffset, o.opts...)
			ind = &Indicator{
				region:     r,
				positioner: p,
				layer:      o.layer,
				panelID:    o.layer.Mount(p, r.Lines),
			}
		}
		next[k] = ind
		drawn = append(drawn, ind)
	}

	o.byKey = next
	o.indicators = drawn
	o.mu.Unlock()

	for _, ind := range stale {
		ind.close()
	}
	return append([]*Indicator(nil), drawn...)
}

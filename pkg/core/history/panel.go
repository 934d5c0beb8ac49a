package history

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// Reverter jumps the roster back to a recorded history entry
type Reverter interface {
	RevertTo(ctx context.Context, idx int) error
}

// Item is one rendered history line
type Item struct {
	Idx         int
	Name        string
	Auto        bool
	ModifiedDay int
	Before      model.ShiftCode
	After       model.ShiftCode
	Selected    bool
}

// Label renders the item as a single line of text
func (i Item) Label() string {
	marker := " "
	if i.Selected {
		marker = ">"
	}
	if i.Auto {
		return fmt.Sprintf("%s #%-4d %-12s [auto] roster generated", marker, i.Idx, i.Name)
	}
	return fmt.Sprintf("%s #%-4d %-12s day %2d: %s -> %s", marker, i.Idx, i.Name, i.ModifiedDay, i.Before, i.After)
}

// Panel lists history entries newest first and reverts the roster on selection
type Panel struct {
	reverter Reverter
	logger   *zap.Logger

	mu          sync.Mutex
	selected    int
	hasSelected bool
}

// NewPanel creates a history panel that reverts through reverter
func NewPanel(reverter Reverter, logger *zap.Logger) *Panel {
	return &Panel{reverter: reverter, logger: logger}
}

// Sorted returns a copy of entries ordered by Idx, highest first
func Sorted(entries []model.HistoryEntry) []model.HistoryEntry {
	out := slices.Clone(entries)
	slices.SortFunc(out, func(a, b model.HistoryEntry) int {
		return b.Idx - a.Idx
	})
	return out
}

// Items builds the display items for entries, newest first
func (p *Panel) Items(entries []model.HistoryEntry) []Item {
	selected, ok := p.Selected()

	sorted := Sorted(entries)
	items := make([]Item, 0, len(sorted))
	for _, e := range sorted {
		item := Item{
			Idx:      e.Idx,
			Name:     e.Name,
			Auto:     e.IsAutoCreated,
			Selected: ok && e.Idx == selected,
		}
		if !e.IsAutoCreated {
			item.ModifiedDay = e.ModifiedDay
			item.Before = e.Before
			item.After = e.After
		}
		items = append(items, item)
	}
	return items
}

// Render writes one line per entry to w
func (p *Panel) Render(w io.Writer, entries []model.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No history recorded for this month.")
		return err
	}
	for _, item := range p.Items(entries) {
		if _, err := fmt.Fprintln(w, item.Label()); err != nil {
			return err
		}
	}
	return nil
}

// SelectEntry marks idx as selected and reverts the roster to it. Selections are not
// serialized; overlapping reverts resolve to the most recently issued one.
func (p *Panel) SelectEntry(ctx context.Context, idx int) error {
	p.mu.Lock()
	p.selected = idx
	p.hasSelected = true
	p.mu.Unlock()

	p.logger.Debug("History entry selected", zap.Int("idx", idx))

	if err := p.reverter.RevertTo(ctx, idx); err != nil {
		return fmt.Errorf("failed to revert to history %d: %w", idx, err)
	}
	return nil
}

// Selected returns the selected entry index, if any
func (p *Panel) Selected() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected, p.hasSelected
}

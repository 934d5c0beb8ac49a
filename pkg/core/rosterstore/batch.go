package rosterstore

import (
	"context"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// Batch is one debounce window of cell edits. Every edit that rides the same window
// shares the Batch and observes the same flush result.
type Batch struct {
	year  int
	month int
	edits []model.PendingEdit
	timer *clock.Timer

	once sync.Once
	done chan struct{}
	err  error
}

func newBatch(year, month int) *Batch {
	return &Batch{year: year, month: month, done: make(chan struct{})}
}

// resolvedBatch returns a batch that is already complete, used for no-op edits
func resolvedBatch() *Batch {
	b := &Batch{done: make(chan struct{})}
	b.resolve(nil)
	return b
}

// Done is closed once the batch has been flushed (or abandoned)
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Err returns the flush result. It is nil until Done is closed
func (b *Batch) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Wait blocks until the batch is flushed or ctx is done
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Batch) resolve(err error) {
	b.once.Do(func() {
		b.err = err
		close(b.done)
	})
}

type cellKey struct {
	memberID int
	dayIndex int
}

// coalesce reduces a window of edits to one write per cell. The latest After wins and
// the earliest Before is kept as the origin; cells whose net change is nil are dropped.
// Writes are ordered by the arrival of each cell's latest edit.
func coalesce(edits []model.PendingEdit) []model.HistoryWrite {
	first := make(map[cellKey]model.PendingEdit, len(edits))
	for _, e := range edits {
		k := cellKey{e.MemberID, e.DayIndex}
		if _, ok := first[k]; !ok {
			first[k] = e
		}
	}

	seen := make(map[cellKey]bool, len(first))
	var writes []model.HistoryWrite
	for i := len(edits) - 1; i >= 0; i-- {
		last := edits[i]
		k := cellKey{last.MemberID, last.DayIndex}
		if seen[k] {
			continue
		}
		seen[k] = true

		origin := first[k]
		if origin.Before == last.After {
			continue
		}
		writes = append(writes, model.HistoryWrite{
			MemberID:    last.MemberID,
			Name:        last.Name,
			Before:      origin.Before,
			After:       last.After,
			ModifiedDay: last.DayIndex + 1,
		})
	}
	slices.Reverse(writes)
	return writes
}

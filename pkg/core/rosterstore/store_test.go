package rosterstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// fakeDuty is an in-memory duty collaborator recording every call
type fakeDuty struct {
	mu        sync.Mutex
	grids     map[[2]int]model.RosterGrid
	histories []model.HistoryEntry
	snapshots map[int]model.RosterGrid
	nextIdx   int

	queries []model.DutyQuery
	updates []model.DutyUpdate

	failUpdate error
	failGet    error

	getGates      map[int]chan struct{} // keyed by month
	updateStarted chan struct{}
	releaseUpdate chan struct{}
	inFlight      int
	maxInFlight   int
}

func newFakeDuty(grids ...model.RosterGrid) *fakeDuty {
	f := &fakeDuty{
		grids:     make(map[[2]int]model.RosterGrid),
		snapshots: make(map[int]model.RosterGrid),
		nextIdx:   1,
		getGates:  make(map[int]chan struct{}),
	}
	for _, g := range grids {
		f.grids[[2]int{g.Year, g.Month}] = g.Clone()
	}
	return f
}

func (f *fakeDuty) GetDuty(ctx context.Context, query model.DutyQuery) (*model.Duty, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate := f.getGates[query.Month]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}

	key := [2]int{query.Year, query.Month}
	if query.History != nil {
		snap, ok := f.snapshots[*query.History]
		if !ok {
			return nil, errors.New("unknown history")
		}
		f.grids[key] = snap.Clone()
	}
	grid, ok := f.grids[key]
	if !ok {
		return nil, errors.New("no roster for period")
	}

	histories := make([]model.HistoryEntry, len(f.histories))
	copy(histories, f.histories)
	return &model.Duty{RosterGrid: grid.Clone(), Histories: histories}, nil
}

func (f *fakeDuty) UpdateDuty(ctx context.Context, update model.DutyUpdate) error {
	f.mu.Lock()
	f.updates = append(f.updates, update)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	started, release := f.updateStarted, f.releaseUpdate
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.failUpdate != nil {
		return f.failUpdate
	}

	key := [2]int{update.Year, update.Month}
	grid := f.grids[key]
	if err := grid.SetShift(update.History.MemberID, update.History.ModifiedDay-1, update.History.After); err != nil {
		return err
	}
	f.grids[key] = grid

	idx := f.nextIdx
	f.nextIdx += 2
	f.histories = append(f.histories, model.HistoryEntry{
		Idx:         idx,
		Name:        update.History.Name,
		ModifiedDay: update.History.ModifiedDay,
		Before:      update.History.Before,
		After:       update.History.After,
	})
	f.snapshots[idx] = grid.Clone()
	return nil
}

func (f *fakeDuty) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeDuty) serverGrid(year, month int) model.RosterGrid {
	f.mu.Lock()
	defer f.mu.Unlock()
	grid := f.grids[[2]int{year, month}].Clone()
	grid.SortRows()
	return grid
}

func mayGrid(t *testing.T) model.RosterGrid {
	t.Helper()
	grid := model.RosterGrid{Year: 2025, Month: 5}
	for _, n := range []struct {
		id   int
		name string
		role string
	}{{1, "Kim", model.RoleNurse}, {2, "Lee", model.RoleHead}, {3, "Park", model.RoleNurse}} {
		row := model.NewRow(2025, 5, n.id, n.name, n.role)
		for i := range row.Shifts {
			row.Shifts[i] = model.ShiftOff
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}

func newTestStore(t *testing.T, api DutyAPI) (*Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	store := New(api, zap.NewNop(), WithClock(mock))
	t.Cleanup(store.Close)
	return store, mock
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func cell(snap Snapshot, memberID, dayIndex int) model.ShiftCode {
	row := snap.Duty.Row(memberID)
	if row == nil {
		return ""
	}
	return row.Shifts[dayIndex]
}

func TestFetch_ReplacesGridAndSortsRows(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, _ := newTestStore(t, api)

	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	snap := store.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Failed)
	require.Len(t, snap.Duty.Rows, 3)
	assert.Equal(t, 2, snap.Duty.Rows[0].MemberID, "head nurse should sort first")
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestFetch_FailureSetsErrorFlag(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	api.failGet = errors.New("unauthorized")
	store, _ := newTestStore(t, api)

	var failures []bool
	store.Subscribe(func(s Snapshot) { failures = append(failures, s.Failed) })

	err := store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, store.Err(), ErrFetchFailed)
	assert.Equal(t, []bool{true}, failures)

	api.mu.Lock()
	api.failGet = nil
	api.mu.Unlock()

	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))
	assert.NoError(t, store.Err())
	assert.False(t, store.Snapshot().Failed)
}

func TestFetch_LatestCallWins(t *testing.T) {
	june := mayGrid(t)
	june.Month = 6
	for i := range june.Rows {
		june.Rows[i].Shifts = june.Rows[i].Shifts[:30]
	}
	api := newFakeDuty(mayGrid(t), june)
	gate := make(chan struct{})
	api.getGates[5] = gate
	store, _ := newTestStore(t, api)

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- store.Fetch(context.Background(), model.DutyQuery{Year: 2025, Month: 5})
	}()

	// wait for the slow call to be issued before the fast one
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.queries) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 6}))
	close(gate)
	require.NoError(t, <-slowDone)

	assert.Equal(t, 6, store.Snapshot().Duty.Month)
}

func TestEditCell_NoOpNeverQueuesOrWrites(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, mock := newTestStore(t, api)
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	for day := 0; day < 31; day++ {
		batch, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: day, Before: model.ShiftOff, After: model.ShiftOff, Year: 2025, Month: 5})
		require.NoError(t, err)
		require.NoError(t, batch.Wait(waitCtx(t)))
	}

	assert.Equal(t, 0, store.Snapshot().Pending)
	assert.Equal(t, PhaseIdle, store.Phase())

	mock.Add(time.Second)
	assert.Equal(t, 0, api.updateCount())
}

func TestEditCell_Validation(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, _ := newTestStore(t, api)

	_, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay})
	assert.ErrorIs(t, err, ErrNoRoster)

	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	tests := []struct {
		name string
		edit model.CellEdit
		want error
	}{
		{"unknown member", model.CellEdit{MemberID: 99, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay}, ErrUnknownMember},
		{"day past month end", model.CellEdit{MemberID: 1, DayIndex: 31, Before: model.ShiftOff, After: model.ShiftDay}, ErrDayOutOfRange},
		{"negative day", model.CellEdit{MemberID: 1, DayIndex: -1, Before: model.ShiftOff, After: model.ShiftDay}, ErrDayOutOfRange},
		{"bad code", model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: "Q"}, ErrInvalidShift},
		{"other month", model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay, Year: 2025, Month: 6}, ErrPeriodMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.EditCell(tt.edit)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, store.Snapshot().Pending)
}

func TestEditCell_OptimisticUpdateIsImmediate(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	_, err := store.EditCell(model.CellEdit{MemberID: 3, DayIndex: 9, Before: model.ShiftOff, After: model.ShiftNight, Year: 2025, Month: 5})
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, model.ShiftNight, cell(snap, 3, 9))
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, PhaseBatching, snap.Phase)
	assert.Equal(t, 0, api.updateCount(), "no write before the batch window elapses")
}

func TestEditCell_BatchesEditsInOneWindow(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, mock := newTestStore(t, api)
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	var mu sync.Mutex
	var seen []model.ShiftCode
	store.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, cell(s, 1, 2))
	})

	first, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 2, Before: model.ShiftOff, After: model.ShiftDay, Year: 2025, Month: 5})
	require.NoError(t, err)
	assert.Equal(t, model.ShiftDay, cell(store.Snapshot(), 1, 2))

	mock.Add(200 * time.Millisecond)

	second, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 2, Before: model.ShiftDay, After: model.ShiftEvening, Year: 2025, Month: 5})
	require.NoError(t, err)
	assert.Same(t, first, second, "second edit should ride the running window")
	assert.Equal(t, model.ShiftEvening, cell(store.Snapshot(), 1, 2))

	mock.Add(299 * time.Millisecond)
	assert.Equal(t, 0, api.updateCount())

	mock.Add(time.Millisecond)
	require.NoError(t, first.Wait(waitCtx(t)))

	require.Equal(t, 1, api.updateCount())
	write := api.updates[0].History
	assert.Equal(t, 3, write.ModifiedDay)
	assert.Equal(t, model.ShiftOff, write.Before)
	assert.Equal(t, model.ShiftEvening, write.After)

	assert.Equal(t, model.ShiftEvening, cell(store.Snapshot(), 1, 2))
	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(seen), 2)
	assert.Equal(t, model.ShiftDay, seen[0])
	for _, code := range seen[1:] {
		assert.Equal(t, model.ShiftEvening, code, "grid must never fall back to the superseded value")
	}
}

func TestEditCell_NetNoChangeSkipsWrite(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, mock := newTestStore(t, api)
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	batch, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay})
	require.NoError(t, err)
	_, err = store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftDay, After: model.ShiftOff})
	require.NoError(t, err)

	mock.Add(DefaultBatchDelay)
	require.NoError(t, batch.Wait(waitCtx(t)))
	assert.Equal(t, 0, api.updateCount())
	assert.Equal(t, model.ShiftOff, cell(store.Snapshot(), 1, 0))
}

func TestFlush_WriteFailureRollsBack(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	api.failUpdate = errors.New("rule service rejected edit")
	store, mock := newTestStore(t, api)
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	batch, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 4, Before: model.ShiftOff, After: model.ShiftNight, Year: 2025, Month: 5})
	require.NoError(t, err)
	assert.Equal(t, model.ShiftNight, cell(store.Snapshot(), 1, 4))

	mock.Add(DefaultBatchDelay)
	err = batch.Wait(waitCtx(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "rule service rejected edit")

	snap := store.Snapshot()
	assert.True(t, snap.Duty.RosterGrid.Equal(api.serverGrid(2025, 5)), "grid should equal server state after rollback")
	assert.Equal(t, model.ShiftOff, cell(snap, 1, 4))
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Pending)
	assert.False(t, snap.Failed, "the rollback fetch itself succeeded")
	assert.ErrorIs(t, snap.WriteErr, ErrWriteFailed)

	// a later edit starts a fresh window
	api.mu.Lock()
	api.failUpdate = nil
	api.mu.Unlock()
	next, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 4, Before: model.ShiftOff, After: model.ShiftDay})
	require.NoError(t, err)
	assert.NotSame(t, batch, next)
	mock.Add(DefaultBatchDelay)
	require.NoError(t, next.Wait(waitCtx(t)))
	assert.Equal(t, model.ShiftDay, cell(store.Snapshot(), 1, 4))
	assert.NoError(t, store.Snapshot().WriteErr, "a successful save clears the write error")
}

func TestFlush_EditsDuringFlushGoToNextWindow(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	api.updateStarted = make(chan struct{}, 4)
	api.releaseUpdate = make(chan struct{})
	store, mock := newTestStore(t, api)
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	first, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay})
	require.NoError(t, err)
	mock.Add(DefaultBatchDelay)
	<-api.updateStarted
	assert.Equal(t, PhaseFlushing, store.Phase())

	second, err := store.EditCell(model.CellEdit{MemberID: 3, DayIndex: 1, Before: model.ShiftOff, After: model.ShiftEvening})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, model.ShiftEvening, cell(store.Snapshot(), 3, 1))

	// second window's timer fires while the first flush is still writing
	mock.Add(DefaultBatchDelay)
	assert.Equal(t, 1, api.updateCount(), "second flush must wait for the first")

	api.releaseUpdate <- struct{}{}
	require.NoError(t, first.Wait(waitCtx(t)))
	assert.Equal(t, model.ShiftEvening, cell(store.Snapshot(), 3, 1), "queued edit stays visible after reconciliation")

	<-api.updateStarted
	api.releaseUpdate <- struct{}{}
	require.NoError(t, second.Wait(waitCtx(t)))

	assert.Equal(t, 2, api.updateCount())
	assert.Equal(t, 1, api.maxInFlight)
	snap := store.Snapshot()
	assert.Equal(t, model.ShiftDay, cell(snap, 1, 0))
	assert.Equal(t, model.ShiftEvening, cell(snap, 3, 1))
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestRevertTo_FetchesHistoryAndReplacesWholeGrid(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, mock := newTestStore(t, api)
	ctx := waitCtx(t)
	require.NoError(t, store.Fetch(ctx, model.DutyQuery{Year: 2025, Month: 5}))

	batch, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay})
	require.NoError(t, err)
	mock.Add(DefaultBatchDelay)
	require.NoError(t, batch.Wait(ctx))

	batch, err = store.EditCell(model.CellEdit{MemberID: 2, DayIndex: 5, Before: model.ShiftOff, After: model.ShiftNight})
	require.NoError(t, err)
	mock.Add(DefaultBatchDelay)
	require.NoError(t, batch.Wait(ctx))

	histories := store.Snapshot().Duty.Histories
	require.Len(t, histories, 2)
	firstIdx := histories[0].Idx

	require.NoError(t, store.RevertTo(ctx, firstIdx))

	api.mu.Lock()
	last := api.queries[len(api.queries)-1]
	api.mu.Unlock()
	require.NotNil(t, last.History)
	assert.Equal(t, firstIdx, *last.History)
	assert.Equal(t, 2025, last.Year)
	assert.Equal(t, 5, last.Month)

	snap := store.Snapshot()
	assert.Equal(t, model.ShiftDay, cell(snap, 1, 0))
	assert.Equal(t, model.ShiftOff, cell(snap, 2, 5), "later edit must not survive the revert")
	assert.True(t, snap.Duty.RosterGrid.Equal(api.serverGrid(2025, 5)))
}

func TestRevertTo_RequiresLoadedRoster(t *testing.T) {
	store, _ := newTestStore(t, newFakeDuty())
	assert.ErrorIs(t, store.RevertTo(context.Background(), 3), ErrNoRoster)
}

func TestEndToEnd_EditIsRecordedAndReadBack(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, mock := newTestStore(t, api)
	ctx := waitCtx(t)
	require.NoError(t, store.Fetch(ctx, model.DutyQuery{Year: 2025, Month: 5}))

	batch, err := store.EditCell(model.CellEdit{MemberID: 1, Name: "Kim", DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay, Year: 2025, Month: 5})
	require.NoError(t, err)
	mock.Add(500 * time.Millisecond)
	require.NoError(t, batch.Wait(ctx))

	require.Equal(t, 1, api.updateCount())
	assert.Equal(t, model.DutyUpdate{
		Year:  2025,
		Month: 5,
		History: model.HistoryWrite{
			MemberID:    1,
			Name:        "Kim",
			Before:      model.ShiftOff,
			After:       model.ShiftDay,
			ModifiedDay: 1,
		},
	}, api.updates[0])

	duty, err := api.GetDuty(ctx, model.DutyQuery{Year: 2025, Month: 5})
	require.NoError(t, err)
	assert.Equal(t, model.ShiftDay, duty.Row(1).Shifts[0])
}

func TestFlush_WritesImmediately(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	store, _ := newTestStore(t, api)
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	_, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftMid})
	require.NoError(t, err)

	require.NoError(t, store.Flush(waitCtx(t)))
	assert.Equal(t, 1, api.updateCount())
	assert.NoError(t, store.Flush(waitCtx(t)), "flush with nothing queued is a no-op")
}

func TestClose_AbandonsOpenWindow(t *testing.T) {
	api := newFakeDuty(mayGrid(t))
	mock := clock.NewMock()
	store := New(api, zap.NewNop(), WithClock(mock))
	require.NoError(t, store.Fetch(waitCtx(t), model.DutyQuery{Year: 2025, Month: 5}))

	batch, err := store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 0, Before: model.ShiftOff, After: model.ShiftDay})
	require.NoError(t, err)

	store.Close()
	assert.ErrorIs(t, batch.Wait(waitCtx(t)), ErrClosed)

	mock.Add(time.Second)
	assert.Equal(t, 0, api.updateCount())

	_, err = store.EditCell(model.CellEdit{MemberID: 1, DayIndex: 1, Before: model.ShiftOff, After: model.ShiftDay})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCoalesce(t *testing.T) {
	edits := []model.PendingEdit{
		{MemberID: 1, Name: "Kim", DayIndex: 2, Before: model.ShiftOff, After: model.ShiftDay},
		{MemberID: 2, Name: "Lee", DayIndex: 0, Before: model.ShiftOff, After: model.ShiftNight},
		{MemberID: 1, Name: "Kim", DayIndex: 2, Before: model.ShiftDay, After: model.ShiftEvening},
		{MemberID: 3, Name: "Park", DayIndex: 4, Before: model.ShiftOff, After: model.ShiftDay},
		{MemberID: 3, Name: "Park", DayIndex: 4, Before: model.ShiftDay, After: model.ShiftOff},
	}

	writes := coalesce(edits)

	require.Len(t, writes, 2)
	assert.Equal(t, model.HistoryWrite{MemberID: 2, Name: "Lee", Before: model.ShiftOff, After: model.ShiftNight, ModifiedDay: 1}, writes[0])
	assert.Equal(t, model.HistoryWrite{MemberID: 1, Name: "Kim", Before: model.ShiftOff, After: model.ShiftEvening, ModifiedDay: 3}, writes[1])
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/core/rules"
	"github.com/jakechorley/nurse-duty/pkg/db"
	"github.com/jakechorley/nurse-duty/pkg/sqlite"
)

func wardStore() *mockStore {
	return newMockStore(
		db.Member{ID: 1, Name: "Kim", Role: model.RoleNurse, Active: true},
		db.Member{ID: 2, Name: "Lee", Role: model.RoleHead, Active: true},
	)
}

func update(memberID int, name string, day int, before, after model.ShiftCode) model.DutyUpdate {
	return model.DutyUpdate{
		Year:  2025,
		Month: 5,
		History: model.HistoryWrite{
			MemberID:    memberID,
			Name:        name,
			ModifiedDay: day,
			Before:      before,
			After:       after,
		},
	}
}

func may() model.DutyQuery {
	return model.DutyQuery{Year: 2025, Month: 5}
}

func TestGetDuty_BuildsGrid(t *testing.T) {
	store := wardStore()
	store.cells[period{2025, 5}] = []db.Cell{
		{MemberID: 1, Day: 2, Shift: "N"},
		{MemberID: 1, Day: 3, Shift: "D"},
		{MemberID: 9, Day: 1, Shift: "D"},
		{MemberID: 2, Day: 40, Shift: "D"},
		{MemberID: 2, Day: 1, Shift: "Q"},
	}

	duty, err := GetDuty(context.Background(), store, []rules.Criterion{rules.NewNightRestCriterion()}, zap.NewNop(), may())
	require.NoError(t, err)

	require.Len(t, duty.Rows, 2)
	assert.Equal(t, "Lee", duty.Rows[0].Name, "elevated roles first")
	kim := duty.Rows[1]
	assert.Len(t, kim.Shifts, 31)
	assert.Equal(t, model.ShiftUnset, kim.Shifts[0])
	assert.Equal(t, model.ShiftNight, kim.Shifts[1])
	assert.Equal(t, model.ShiftDay, kim.Shifts[2])
	assert.Equal(t, model.ShiftUnset, duty.Rows[0].Shifts[0])

	require.Len(t, duty.Issues, 1)
	assert.Equal(t, "Kim", duty.Issues[0].Name)
	assert.Equal(t, 2, duty.Issues[0].StartDate)
	assert.Equal(t, 3, duty.Issues[0].EndDate)
	assert.Empty(t, duty.Histories)
}

func TestGetDuty_DefaultsToCurrentMonth(t *testing.T) {
	now := time.Now()

	duty, err := GetDuty(context.Background(), wardStore(), nil, zap.NewNop(), model.DutyQuery{})
	require.NoError(t, err)

	assert.Equal(t, now.Year(), duty.Year)
	assert.Equal(t, int(now.Month()), duty.Month)
}

func TestGetDuty_InvalidPeriod(t *testing.T) {
	_, err := GetDuty(context.Background(), wardStore(), nil, zap.NewNop(), model.DutyQuery{Year: 2025, Month: 13})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestGetDuty_StoreError(t *testing.T) {
	store := wardStore()
	store.getMembersErr = errors.New("connection refused")

	_, err := GetDuty(context.Background(), store, nil, zap.NewNop(), may())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get members")
}

func TestUpdateDuty_AppliesAndRecords(t *testing.T) {
	ctx := context.Background()
	store := wardStore()

	entry, err := UpdateDuty(ctx, store, zap.NewNop(), update(1, "Kim", 3, model.ShiftUnset, model.ShiftDay))
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Idx)
	assert.Equal(t, model.ShiftDay, entry.After)

	duty, err := GetDuty(ctx, store, nil, zap.NewNop(), may())
	require.NoError(t, err)
	assert.Equal(t, model.ShiftDay, duty.Rows[1].Shifts[2])
	require.Len(t, duty.Histories, 1)
	assert.Equal(t, model.HistoryEntry{Idx: 3, Name: "Kim", ModifiedDay: 3, Before: model.ShiftUnset, After: model.ShiftDay}, duty.Histories[0])

	require.Len(t, store.histories, 1)
	assert.Contains(t, string(store.histories[0].Snapshot), `"memberId":1`)
}

func TestUpdateDuty_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		update model.DutyUpdate
		want   error
	}{
		{name: "unknown shift code", update: update(1, "Kim", 3, model.ShiftOff, "Z"), want: ErrInvalidUpdate},
		{name: "day zero", update: update(1, "Kim", 0, model.ShiftOff, model.ShiftDay), want: ErrInvalidUpdate},
		{name: "no member", update: update(0, "Kim", 3, model.ShiftOff, model.ShiftDay), want: ErrInvalidUpdate},
		{name: "no name", update: update(1, "", 3, model.ShiftOff, model.ShiftDay), want: ErrInvalidUpdate},
		{name: "unknown member", update: update(7, "Ghost", 3, model.ShiftOff, model.ShiftDay), want: ErrUnknownMember},
		{
			name: "day past month end",
			update: model.DutyUpdate{Year: 2025, Month: 2, History: model.HistoryWrite{
				MemberID: 1, Name: "Kim", ModifiedDay: 30, Before: model.ShiftOff, After: model.ShiftDay,
			}},
			want: ErrInvalidUpdate,
		},
		{
			name: "bad month",
			update: model.DutyUpdate{Year: 2025, Month: 13, History: model.HistoryWrite{
				MemberID: 1, Name: "Kim", ModifiedDay: 1, Before: model.ShiftOff, After: model.ShiftDay,
			}},
			want: ErrInvalidUpdate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := wardStore()
			_, err := UpdateDuty(context.Background(), store, zap.NewNop(), tt.update)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.histories)
		})
	}
}

func TestGetDuty_HistoryRevertIsDurable(t *testing.T) {
	ctx := context.Background()
	store := wardStore()
	logger := zap.NewNop()

	first, err := UpdateDuty(ctx, store, logger, update(1, "Kim", 1, model.ShiftUnset, model.ShiftDay))
	require.NoError(t, err)
	_, err = UpdateDuty(ctx, store, logger, update(2, "Lee", 2, model.ShiftUnset, model.ShiftNight))
	require.NoError(t, err)

	query := may()
	query.History = &first.Idx
	reverted, err := GetDuty(ctx, store, nil, logger, query)
	require.NoError(t, err)

	assert.Equal(t, model.ShiftDay, reverted.Rows[1].Shifts[0])
	assert.Equal(t, model.ShiftUnset, reverted.Rows[0].Shifts[1], "later change is undone")
	assert.Len(t, reverted.Histories, 2, "reverting records no new entry")

	current, err := GetDuty(ctx, store, nil, logger, may())
	require.NoError(t, err)
	assert.True(t, current.RosterGrid.Equal(reverted.RosterGrid), "revert persists")
}

func TestGetDuty_HistoryErrors(t *testing.T) {
	ctx := context.Background()
	store := wardStore()
	logger := zap.NewNop()

	missing := 42
	_, err := GetDuty(ctx, store, nil, logger, model.DutyQuery{Year: 2025, Month: 5, History: &missing})
	assert.ErrorIs(t, err, db.ErrNotFound)

	entry, err := UpdateDuty(ctx, store, logger, update(1, "Kim", 1, model.ShiftUnset, model.ShiftDay))
	require.NoError(t, err)
	_, err = GetDuty(ctx, store, nil, logger, model.DutyQuery{Year: 2025, Month: 6, History: &entry.Idx})
	assert.ErrorIs(t, err, ErrHistoryPeriod)
}

func TestGenerateDuty(t *testing.T) {
	ctx := context.Background()
	store := wardStore()

	entry, err := GenerateDuty(ctx, store, zap.NewNop(), 2025, 5, []model.RequestStatus{
		{MemberID: 1, Date: 2, Status: model.RequestAccepted, Message: "wedding"},
		{MemberID: 2, Date: 1, Status: model.RequestDenied},
		{MemberID: 9, Date: 1, Status: model.RequestAccepted},
	})
	require.NoError(t, err)
	assert.True(t, entry.IsAutoCreated)
	assert.Equal(t, AutoHistoryName, entry.Name)

	duty, err := GetDuty(ctx, store, nil, zap.NewNop(), may())
	require.NoError(t, err)

	lee, kim := duty.Rows[0], duty.Rows[1]
	assert.Equal(t, model.ShiftDay, lee.Shifts[0])
	assert.Equal(t, model.ShiftNight, lee.Shifts[4])
	assert.Equal(t, model.ShiftDay, kim.Shifts[0], "rows are staggered by one day")
	assert.Equal(t, model.ShiftOff, kim.Shifts[1], "accepted request is a day off")
	for _, row := range duty.Rows {
		assert.NotContains(t, row.Shifts, model.ShiftUnset)
	}

	assert.Empty(t, rules.Validate(duty.RosterGrid, rules.Defaults(rules.DefaultLimits)), "the rotation satisfies the default rules")
}

func TestGenerateDuty_NoMembers(t *testing.T) {
	_, err := GenerateDuty(context.Background(), newMockStore(), zap.NewNop(), 2025, 5, nil)
	assert.Error(t, err)
}

func TestUpdateDuty_ConcurrentUpdatesAgreeWithHistory(t *testing.T) {
	store, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	ctx := context.Background()

	kim := db.Member{Name: "Kim", Role: model.RoleNurse, Active: true}
	require.NoError(t, store.InsertMember(ctx, &kim))

	days := []int{3, 9, 14, 21, 27}
	var wg sync.WaitGroup
	errs := make([]error, len(days))
	for i, day := range days {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = UpdateDuty(ctx, store, zap.NewNop(), update(kim.ID, "Kim", day, model.ShiftUnset, model.ShiftNight))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	duty, err := GetDuty(ctx, store, nil, zap.NewNop(), may())
	require.NoError(t, err)
	row := duty.Row(kim.ID)
	require.NotNil(t, row)
	for _, day := range days {
		assert.Equal(t, model.ShiftNight, row.Shifts[day-1], "day %d", day)
	}

	histories, err := store.GetHistories(ctx, 2025, 5)
	require.NoError(t, err)
	require.Len(t, histories, len(days))

	var latest model.RosterGrid
	require.NoError(t, json.Unmarshal(histories[len(histories)-1].Snapshot, &latest))
	assert.True(t, latest.Equal(duty.RosterGrid), "newest snapshot matches the stored month")
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/core/rules"
	"github.com/jakechorley/nurse-duty/pkg/db"
)

var (
	// ErrInvalidUpdate is returned when an update payload fails validation
	ErrInvalidUpdate = errors.New("invalid duty update")
	// ErrUnknownMember is returned when an update names a member that does not exist
	ErrUnknownMember = errors.New("unknown member")
	// ErrHistoryPeriod is returned when a history entry belongs to another month
	ErrHistoryPeriod = errors.New("history entry belongs to another month")
	// ErrInvalidPeriod is returned for a year or month out of range
	ErrInvalidPeriod = errors.New("invalid period")
)

// AutoHistoryName is recorded as the name of generated history entries
const AutoHistoryName = "auto"

var validate = validator.New()

// DutyStore is the persistence needed to read and change a month's duty
type DutyStore interface {
	db.MemberStore
	db.DutyStore
}

// GetDuty builds the duty read model for a month. Zero year or month default to the
// current month. A non-nil query.History first restores the grid recorded at that
// history index as the month's current state.
func GetDuty(ctx context.Context, database DutyStore, criteria []rules.Criterion, logger *zap.Logger, query model.DutyQuery) (*model.Duty, error) {
	year, month := query.Year, query.Month
	if year == 0 || month == 0 {
		now := time.Now()
		year, month = now.Year(), int(now.Month())
	}
	if err := checkPeriod(year, month); err != nil {
		return nil, err
	}

	if query.History != nil {
		if err := restoreHistory(ctx, database, logger, year, month, *query.History); err != nil {
			return nil, err
		}
	}

	grid, err := loadGrid(ctx, database, year, month)
	if err != nil {
		return nil, err
	}

	histories, err := database.GetHistories(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to get histories: %w", err)
	}

	duty := &model.Duty{
		RosterGrid: grid,
		Issues:     rules.Validate(grid, criteria),
		Histories:  make([]model.HistoryEntry, 0, len(histories)),
	}
	for _, h := range histories {
		duty.Histories = append(duty.Histories, toHistoryEntry(h))
	}

	logger.Debug("Duty loaded",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("rows", len(grid.Rows)),
		zap.Int("issues", len(duty.Issues)),
		zap.Int("histories", len(duty.Histories)))

	return duty, nil
}

func checkPeriod(year, month int) error {
	if month < 1 || month > 12 || year < 1900 {
		return fmt.Errorf("%w: %d-%02d", ErrInvalidPeriod, year, month)
	}
	return nil
}

// restoreHistory makes the snapshot of history idx the month's current state. No new
// history entry is recorded.
func restoreHistory(ctx context.Context, database DutyStore, logger *zap.Logger, year, month, idx int) error {
	h, err := database.GetHistory(ctx, idx)
	if err != nil {
		return fmt.Errorf("failed to get history %d: %w", idx, err)
	}
	if h.Year != year || h.Month != month {
		return fmt.Errorf("%w: history %d is %d-%02d", ErrHistoryPeriod, idx, h.Year, h.Month)
	}

	var snapshot model.RosterGrid
	if err := json.Unmarshal(h.Snapshot, &snapshot); err != nil {
		return fmt.Errorf("failed to decode history %d snapshot: %w", idx, err)
	}

	_, err = database.EditMonth(ctx, year, month, func([]db.Cell) ([]db.Cell, *db.History, error) {
		return cellsFromGrid(snapshot), nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to restore history %d: %w", idx, err)
	}

	logger.Info("Restored roster from history", zap.Int("idx", idx), zap.Int("year", year), zap.Int("month", month))
	return nil
}

// UpdateDuty applies one cell change and records it as a history entry
func UpdateDuty(ctx context.Context, database DutyStore, logger *zap.Logger, update model.DutyUpdate) (*model.HistoryEntry, error) {
	if err := validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
	}
	change := update.History
	if change.ModifiedDay > model.DaysInMonth(update.Year, update.Month) {
		return nil, fmt.Errorf("%w: day %d is outside %d-%02d", ErrInvalidUpdate, change.ModifiedDay, update.Year, update.Month)
	}

	members, err := database.GetMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}

	history := &db.History{
		MemberID:      change.MemberID,
		Name:          change.Name,
		ModifiedDay:   change.ModifiedDay,
		Before:        string(change.Before),
		After:         string(change.After),
		IsAutoCreated: change.IsAutoCreated,
	}
	entry, err := commitGrid(ctx, database, update.Year, update.Month, members, history, func(grid *model.RosterGrid) error {
		if grid.Row(change.MemberID) == nil {
			return fmt.Errorf("%w: %d", ErrUnknownMember, change.MemberID)
		}
		if err := grid.SetShift(change.MemberID, change.ModifiedDay-1, change.After); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Duty updated",
		zap.Int("idx", entry.Idx),
		zap.Int("member_id", change.MemberID),
		zap.Int("day", change.ModifiedDay),
		zap.String("before", string(change.Before)),
		zap.String("after", string(change.After)))

	return entry, nil
}

// loadGrid builds the month grid from active members and stored cells. Unstored days are
// unset and rows are ordered elevated roles first.
func loadGrid(ctx context.Context, database DutyStore, year, month int) (model.RosterGrid, error) {
	members, err := database.GetMembers(ctx)
	if err != nil {
		return model.RosterGrid{}, fmt.Errorf("failed to get members: %w", err)
	}
	cells, err := database.GetCells(ctx, year, month)
	if err != nil {
		return model.RosterGrid{}, fmt.Errorf("failed to get cells: %w", err)
	}
	return buildGrid(year, month, members, cells), nil
}

func buildGrid(year, month int, members []db.Member, cells []db.Cell) model.RosterGrid {
	grid := model.RosterGrid{Year: year, Month: month, Rows: make([]model.NurseRow, 0, len(members))}
	for _, m := range members {
		grid.Rows = append(grid.Rows, model.NewRow(year, month, m.ID, m.Name, m.Role))
	}

	for _, c := range cells {
		code, err := model.ParseShiftCode(c.Shift)
		if err != nil {
			continue
		}
		row := grid.Row(c.MemberID)
		if row == nil || c.Day < 1 || c.Day > len(row.Shifts) {
			continue
		}
		row.Shifts[c.Day-1] = code
	}

	grid.SortRows()
	return grid
}

func cellsFromGrid(grid model.RosterGrid) []db.Cell {
	var cells []db.Cell
	for _, row := range grid.Rows {
		for i, s := range row.Shifts {
			if s == model.ShiftUnset {
				continue
			}
			cells = append(cells, db.Cell{MemberID: row.MemberID, Day: i + 1, Shift: string(s)})
		}
	}
	return cells
}

// commitGrid rebuilds the month from its stored cells, lets change modify it and saves the
// result with history, which gets a snapshot of the saved grid. The read and the write
// happen in one store transaction, so concurrent commits to a month never drop a cell.
func commitGrid(ctx context.Context, database db.DutyStore, year, month int, members []db.Member, history *db.History, change func(grid *model.RosterGrid) error) (*model.HistoryEntry, error) {
	_, err := database.EditMonth(ctx, year, month, func(cells []db.Cell) ([]db.Cell, *db.History, error) {
		grid := buildGrid(year, month, members, cells)
		if err := change(&grid); err != nil {
			return nil, nil, err
		}

		snapshot, err := json.Marshal(grid)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode snapshot: %w", err)
		}
		history.Snapshot = snapshot
		return cellsFromGrid(grid), history, nil
	})
	if err != nil {
		return nil, err
	}

	entry := toHistoryEntry(*history)
	return &entry, nil
}

func toHistoryEntry(h db.History) model.HistoryEntry {
	return model.HistoryEntry{
		Idx:           h.Idx,
		Name:          h.Name,
		ModifiedDay:   h.ModifiedDay,
		Before:        model.ShiftCode(h.Before),
		After:         model.ShiftCode(h.After),
		IsAutoCreated: h.IsAutoCreated,
	}
}

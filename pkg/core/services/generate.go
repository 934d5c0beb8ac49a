package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/db"
)

// rotation is the repeating pattern generated rosters follow. Each row starts one day
// further into the pattern than the row above so shifts stay covered.
var rotation = []model.ShiftCode{
	model.ShiftDay,
	model.ShiftDay,
	model.ShiftEvening,
	model.ShiftEvening,
	model.ShiftNight,
	model.ShiftOff,
	model.ShiftOff,
}

// GenerateDuty fills a month with the rotation pattern and records it as an automatic
// history entry. Accepted requests are honoured as days off.
func GenerateDuty(ctx context.Context, database DutyStore, logger *zap.Logger, year, month int, requests []model.RequestStatus) (*model.HistoryEntry, error) {
	if err := checkPeriod(year, month); err != nil {
		return nil, err
	}

	members, err := database.GetMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("no active members to schedule")
	}

	var rows, honoured int
	history := &db.History{Name: AutoHistoryName, IsAutoCreated: true}
	entry, err := commitGrid(ctx, database, year, month, members, history, func(grid *model.RosterGrid) error {
		// generation overwrites whatever the month held
		for i := range grid.Rows {
			row := &grid.Rows[i]
			for day := range row.Shifts {
				row.Shifts[day] = rotation[(day+i)%len(rotation)]
			}
		}

		honoured = 0
		for _, req := range requests {
			if req.Status != model.RequestAccepted {
				continue
			}
			if err := grid.SetShift(req.MemberID, req.Date-1, model.ShiftOff); err != nil {
				logger.Debug("Skipping request outside roster", zap.Int("member_id", req.MemberID), zap.Int("date", req.Date))
				continue
			}
			honoured++
		}
		rows = len(grid.Rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Duty generated",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("rows", rows),
		zap.Int("requests_honoured", honoured),
		zap.Int("idx", entry.Idx))

	return entry, nil
}

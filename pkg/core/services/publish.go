package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/internal/config"
	"github.com/jakechorley/nurse-duty/pkg/clients/sheetsclient"
	"github.com/jakechorley/nurse-duty/pkg/core/model"
)

// DutyPublisher writes a month roster to a spreadsheet
type DutyPublisher interface {
	PublishDuty(spreadsheetID string, duty *sheetsclient.PublishedDuty) (string, error)
}

// PublishDuty publishes a month's roster to the configured roster sheet and returns the tab
// it was written to
func PublishDuty(ctx context.Context, database DutyStore, publisher DutyPublisher, cfg *config.Config, logger *zap.Logger, year, month int) (string, error) {
	if cfg.RosterSheetID == "" {
		return "", errors.New("rosterSheetID is not configured")
	}

	grid, err := loadGrid(ctx, database, year, month)
	if err != nil {
		return "", err
	}

	published := toPublishedDuty(grid)
	tab, err := publisher.PublishDuty(cfg.RosterSheetID, published)
	if err != nil {
		return "", fmt.Errorf("failed to publish duty: %w", err)
	}

	logger.Info("Duty published",
		zap.String("spreadsheet_id", cfg.RosterSheetID),
		zap.String("tab", tab),
		zap.Int("rows", len(published.Rows)))

	return tab, nil
}

func toPublishedDuty(grid model.RosterGrid) *sheetsclient.PublishedDuty {
	days := grid.Days()
	header := make([]string, 0, days+2)
	header = append(header, "Name", "Role")
	for d := 1; d <= days; d++ {
		header = append(header, strconv.Itoa(d))
	}

	rows := make([][]string, 0, len(grid.Rows))
	for _, r := range grid.Rows {
		row := make([]string, 0, len(r.Shifts)+2)
		row = append(row, r.Name, r.Role)
		for _, s := range r.Shifts {
			if s == model.ShiftUnset {
				row = append(row, "")
				continue
			}
			row = append(row, string(s))
		}
		rows = append(rows, row)
	}

	return &sheetsclient.PublishedDuty{Year: grid.Year, Month: grid.Month, Header: header, Rows: rows}
}

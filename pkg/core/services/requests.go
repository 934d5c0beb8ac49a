package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/internal/config"
	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/db"
)

// ListRequests returns a month's request statuses: stored requests plus recurring
// requests from config. A stored request wins over a recurring one for the same day.
func ListRequests(ctx context.Context, store db.RequestStore, cfg *config.Config, logger *zap.Logger, year, month int) ([]model.RequestStatus, error) {
	stored, err := store.GetRequests(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to get requests: %w", err)
	}

	type key struct{ member, day int }
	seen := make(map[key]bool, len(stored))
	result := make([]model.RequestStatus, 0, len(stored))
	for _, r := range stored {
		seen[key{r.MemberID, r.Day}] = true
		result = append(result, model.RequestStatus{
			MemberID: r.MemberID,
			Date:     r.Day,
			Status:   model.RequestState(r.Status),
			Message:  r.Message,
		})
	}

	recurring, err := expandRecurring(cfg.RecurringRequests, year, month)
	if err != nil {
		return nil, err
	}
	for _, r := range recurring {
		if seen[key{r.MemberID, r.Date}] {
			continue
		}
		seen[key{r.MemberID, r.Date}] = true
		result = append(result, r)
	}

	slices.SortStableFunc(result, func(a, b model.RequestStatus) int {
		if a.Date != b.Date {
			return a.Date - b.Date
		}
		return a.MemberID - b.MemberID
	})

	logger.Debug("Requests listed",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("stored", len(stored)),
		zap.Int("recurring", len(recurring)))

	return result, nil
}

// expandRecurring lists the occurrences of recurring requests that fall in the month
func expandRecurring(recurring []config.RecurringRequest, year, month int) ([]model.RequestStatus, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	var out []model.RequestStatus
	for i, r := range recurring {
		rule, err := rrule.StrToRRule(r.RRule)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rrule for recurring request %d: %w", i, err)
		}
		rule.DTStart(start)

		for _, occurrence := range rule.Between(start, end, true) {
			out = append(out, model.RequestStatus{
				MemberID: r.MemberID,
				Date:     occurrence.Day(),
				Status:   model.RequestState(r.Status),
				Message:  r.Message,
			})
		}
	}
	return out, nil
}

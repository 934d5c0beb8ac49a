package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/internal/config"
	"github.com/jakechorley/nurse-duty/pkg/clients/sheetsclient"
	"github.com/jakechorley/nurse-duty/pkg/db"
)

// StaffLister reads the staff list from a spreadsheet
type StaffLister interface {
	ListStaff(spreadsheetID, tab string) ([]sheetsclient.StaffRow, error)
}

// ImportStaff adds active nurses from the staff sheet that are not yet members.
// Members are matched by name.
func ImportStaff(ctx context.Context, store db.MemberStore, lister StaffLister, cfg *config.Config, logger *zap.Logger) ([]db.Member, error) {
	if cfg.RosterSheetID == "" || cfg.StaffTab == "" {
		return nil, errors.New("rosterSheetID and staffTab must be configured")
	}

	staff, err := lister.ListStaff(cfg.RosterSheetID, cfg.StaffTab)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}

	existing, err := store.GetMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[m.Name] = true
	}

	var added []db.Member
	for _, s := range staff {
		if !s.Active || known[s.Name] {
			continue
		}
		member := db.Member{Name: s.Name, Role: s.Role, Active: true}
		if err := store.InsertMember(ctx, &member); err != nil {
			return nil, fmt.Errorf("failed to insert member %s: %w", s.Name, err)
		}
		known[s.Name] = true
		added = append(added, member)
		logger.Debug("Member imported", zap.String("name", member.Name), zap.Int("id", member.ID))
	}

	logger.Info("Staff imported", zap.Int("listed", len(staff)), zap.Int("added", len(added)))
	return added, nil
}

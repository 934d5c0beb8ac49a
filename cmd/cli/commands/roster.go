package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/core/rosterstore"
)

// loadPeriod fetches the month unless the roster store already holds it
func loadPeriod(app *AppContext, year, month int, refresh bool) error {
	snap := app.Roster.Snapshot()
	if !refresh && snap.Loaded && !snap.Failed && snap.Duty.Year == year && snap.Duty.Month == month {
		return nil
	}
	if err := app.Roster.Fetch(app.Ctx, model.DutyQuery{Year: year, Month: month}); err != nil {
		return err
	}
	return nil
}

// ShowCmd creates the show command
func ShowCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <year> <month>",
		Short: "Show the duty roster and its rule violations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			app.Logger.Debug("show command", zap.Int("year", year), zap.Int("month", month))

			// Pending edits survive the refetch
			if err := loadPeriod(app, year, month, true); err != nil {
				return err
			}

			fmt.Println()
			renderRoster(os.Stdout, app.Roster.Snapshot())
			fmt.Println()
			return nil
		},
	}
}

// EditCmd creates the edit command
func EditCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <year> <month> <memberId> <day>=<code>...",
		Short: "Change one nurse's shifts, e.g. edit 2025 5 3 4=N 5=O",
		Long: `Change one nurse's shifts. Edits show immediately and are saved together once
no further edit has arrived for the batch window. Codes: D E N O M X.`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			noWait, _ := cmd.Flags().GetBool("no-wait")

			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}
			memberID, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("memberId must be a number: %w", err)
			}
			assignments, err := parseAssignments(args[3:])
			if err != nil {
				return err
			}

			if err := loadPeriod(app, year, month, false); err != nil {
				return err
			}

			var batches []*rosterstore.Batch
			for _, a := range assignments {
				snap := app.Roster.Snapshot()
				row := snap.Duty.Row(memberID)
				if row == nil {
					return fmt.Errorf("member %d is not on the %d-%02d roster", memberID, year, month)
				}
				if a.Day > len(row.Shifts) {
					return fmt.Errorf("day %d is outside %d-%02d", a.Day, year, month)
				}

				b, err := app.Roster.EditCell(model.CellEdit{
					MemberID: memberID,
					Name:     row.Name,
					DayIndex: a.Day - 1,
					Before:   row.Shifts[a.Day-1],
					After:    a.Code,
					Year:     year,
					Month:    month,
				})
				if err != nil {
					return err
				}
				if len(batches) == 0 || batches[len(batches)-1] != b {
					batches = append(batches, b)
				}
			}

			fmt.Printf("Queued %d edit(s) for member %d\n", len(assignments), memberID)
			if noWait {
				return nil
			}

			for _, b := range batches {
				if err := b.Wait(app.Ctx); err != nil {
					fmt.Println("\n❌ Edits were rejected and the roster was reloaded")
					return err
				}
			}

			fmt.Printf("✅ Saved\n\n")
			renderRoster(os.Stdout, app.Roster.Snapshot())
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("no-wait", false, "Return once edits are queued instead of waiting for them to be saved")

	return cmd
}

// HistoryCmd creates the history command
func HistoryCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <year> <month>",
		Short: "List the roster's recorded changes, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			if err := loadPeriod(app, year, month, true); err != nil {
				return err
			}

			fmt.Println()
			if err := app.History.Render(os.Stdout, app.Roster.Snapshot().Duty.Histories); err != nil {
				return err
			}
			fmt.Println()
			return nil
		},
	}
}

// RevertCmd creates the revert command
func RevertCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <year> <month> <idx>",
		Short: "Restore the roster to the state recorded at a history entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("idx must be a number: %w", err)
			}

			if err := loadPeriod(app, year, month, false); err != nil {
				return err
			}

			app.Logger.Info("revert command", zap.Int("idx", idx))
			if err := app.History.SelectEntry(app.Ctx, idx); err != nil {
				return err
			}

			snap := app.Roster.Snapshot()
			fmt.Printf("\n✅ Roster restored to history #%d\n\n", idx)
			renderRoster(os.Stdout, snap)
			fmt.Println()
			return app.History.Render(os.Stdout, snap.Duty.Histories)
		},
	}
}

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/api"
	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/core/services"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the duty server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Cfg.ListenAddr
			}

			database, err := app.Database()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := api.NewRouter(api.NewHandler(database, app.Cfg, app.Logger), app.Cfg.AllowedOrigins)
			return api.Serve(ctx, addr, router, app.Logger)
		},
	}

	cmd.Flags().String("addr", "", "Listen address, overrides listenAddr from config")

	return cmd
}

// GenerateCmd creates the generate command
func GenerateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <year> <month>",
		Short: "Fill a month from the shift rotation, honouring accepted requests",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			entry, err := app.Client.GenerateDuty(app.Ctx, year, month)
			if err != nil {
				return fmt.Errorf("failed to generate duty: %w", err)
			}
			app.Logger.Info("Duty generated", zap.Int("idx", entry.Idx))

			if err := app.Roster.Fetch(app.Ctx, model.DutyQuery{Year: year, Month: month}); err != nil {
				return err
			}

			fmt.Printf("\n✅ Roster generated (history #%d)\n\n", entry.Idx)
			renderRoster(os.Stdout, app.Roster.Snapshot())
			fmt.Println()
			return nil
		},
	}
}

// PublishCmd creates the publish command
func PublishCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <year> <month>",
		Short: "Publish a month's roster to Google Sheets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}

			database, err := app.Database()
			if err != nil {
				return err
			}
			sheets, err := app.SheetsClient()
			if err != nil {
				return err
			}

			tab, err := services.PublishDuty(app.Ctx, database, sheets, app.Cfg, app.Logger, year, month)
			if err != nil {
				return err
			}

			fmt.Printf("\n✅ Roster Published Successfully\n\n")
			fmt.Printf("Tab:      %s\n", tab)
			fmt.Printf("Sheet ID: %s\n\n", app.Cfg.RosterSheetID)
			return nil
		},
	}
}

// ImportStaffCmd creates the import-staff command
func ImportStaffCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import-staff",
		Short: "Add active nurses from the staff sheet as roster members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := app.Database()
			if err != nil {
				return err
			}
			sheets, err := app.SheetsClient()
			if err != nil {
				return err
			}

			added, err := services.ImportStaff(app.Ctx, database, sheets, app.Cfg, app.Logger)
			if err != nil {
				return err
			}

			if len(added) == 0 {
				fmt.Println("No new staff to import.")
				return nil
			}
			fmt.Printf("\nImported %d member(s):\n\n", len(added))
			for _, m := range added {
				fmt.Printf("  %4d  %-20s %s\n", m.ID, m.Name, m.Role)
			}
			fmt.Println()
			return nil
		},
	}
}

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/pkg/core/overlay"
)

// OverlaysCmd creates the overlays command
func OverlaysCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlays <year> <month>",
		Short: "Lay out violation and request indicators over the roster grid",
		Long: `Lay out violation and request indicators for a roster grid whose first day cell
sits at the given position, then hover each indicator to place its detail panel.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cellWidth, _ := cmd.Flags().GetFloat64("cell-width")
			cellHeight, _ := cmd.Flags().GetFloat64("cell-height")
			top, _ := cmd.Flags().GetFloat64("top")
			left, _ := cmd.Flags().GetFloat64("left")
			scroll, _ := cmd.Flags().GetFloat64("scroll")

			year, month, err := parsePeriod(args[0], args[1])
			if err != nil {
				return err
			}
			if err := loadPeriod(app, year, month, true); err != nil {
				return err
			}
			requests, err := app.Client.ListRequests(app.Ctx, year, month)
			if err != nil {
				return fmt.Errorf("failed to list requests: %w", err)
			}

			opts := []overlay.Option{overlay.WithLogger(app.Logger)}
			if app.Cfg.ThrottleInterval > 0 {
				opts = append(opts, overlay.WithThrottleInterval(app.Cfg.ThrottleInterval))
			}

			window := overlay.NewWindow()
			window.ScrollTo(overlay.Point{Top: scroll})
			origin := overlay.NewCell(overlay.Rect{Top: top, Left: left, Width: cellWidth, Height: cellHeight})
			layer := overlay.NewLayer()

			violations := overlay.NewViolationOverlay(layer, window, origin, opts...)
			defer violations.Close()
			requestMarks := overlay.NewRequestOverlay(layer, window, origin, opts...)
			defer requestMarks.Close()

			snap := app.Roster.Snapshot()
			issueIndicators := violations.Update(snap.Duty.RosterGrid, snap.Duty.Issues)
			requestIndicators := requestMarks.Update(snap.Duty.RosterGrid, requests)

			for _, ind := range append(issueIndicators, requestIndicators...) {
				ind.Hover(true)
			}

			app.Logger.Debug("Overlays laid out",
				zap.Int("violations", len(issueIndicators)),
				zap.Int("requests", len(requestIndicators)),
				zap.Int("panels", layer.Len()))

			fmt.Println()
			renderIndicators(os.Stdout, "Violations", issueIndicators)
			fmt.Println()
			renderIndicators(os.Stdout, "Requests", requestIndicators)
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Float64("cell-width", 40, "Width of one day cell")
	cmd.Flags().Float64("cell-height", 20, "Height of one roster row")
	cmd.Flags().Float64("top", 0, "Top of the first day cell in the viewport")
	cmd.Flags().Float64("left", 0, "Left of the first day cell in the viewport")
	cmd.Flags().Float64("scroll", 0, "Vertical page scroll offset")

	return cmd
}

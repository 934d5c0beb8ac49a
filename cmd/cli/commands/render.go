package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jakechorley/nurse-duty/pkg/clients/sheetsclient"
	"github.com/jakechorley/nurse-duty/pkg/core/model"
	"github.com/jakechorley/nurse-duty/pkg/core/overlay"
	"github.com/jakechorley/nurse-duty/pkg/core/rosterstore"
)

const unsetGlyph = "."

// renderRoster writes the month grid, one line per nurse, followed by its issues
func renderRoster(w io.Writer, snap rosterstore.Snapshot) {
	duty := snap.Duty
	fmt.Fprintf(w, "%s  (%d nurses, %s", sheetsclient.TabTitle(duty.Year, duty.Month), len(duty.Rows), snap.Phase)
	if snap.Pending > 0 {
		fmt.Fprintf(w, ", %d pending", snap.Pending)
	}
	fmt.Fprintln(w, ")")

	var header strings.Builder
	for d := 1; d <= duty.Days(); d++ {
		header.WriteString(strconv.Itoa(d % 10))
	}
	fmt.Fprintf(w, "%-4s %-12s %-7s %s\n", "ID", "Name", "Role", header.String())

	for _, row := range duty.Rows {
		shifts := strings.ReplaceAll(row.ShiftString(), string(model.ShiftUnset), unsetGlyph)
		fmt.Fprintf(w, "%-4d %-12s %-7s %s\n", row.MemberID, row.Name, row.Role, shifts)
	}

	if len(duty.Issues) == 0 {
		return
	}
	fmt.Fprintln(w, "\nIssues:")
	for _, v := range duty.Issues {
		fmt.Fprintf(w, "  ! %-12s %-8s %s\n", v.Name, dayRange(v.StartDate, v.End()), v.Message)
	}
}

func dayRange(start, end int) string {
	if end <= start {
		return "day " + strconv.Itoa(start)
	}
	return fmt.Sprintf("days %d-%d", start, end)
}

// renderIndicators writes each indicator's placement and the detail panels drawn for it
func renderIndicators(w io.Writer, title string, indicators []*overlay.Indicator) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(indicators))
	for _, ind := range indicators {
		r := ind.Region()
		fmt.Fprintf(w, "  [%s] %-12s %-10s at (%.0f,%.0f) %.0fx%.0f",
			r.Dot, r.Name, dayRange(r.StartDate, r.EndDate), r.Left, r.Top, r.Width, r.Height)
		if ind.DetailVisible() {
			pos := ind.DetailPosition()
			fmt.Fprintf(w, "  detail at (%.0f,%.0f)", pos.Left, pos.Top)
		}
		fmt.Fprintln(w)
		for _, line := range r.Lines {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}

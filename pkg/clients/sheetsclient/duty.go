package sheetsclient

import (
	"fmt"
	"time"
)

// PublishedDuty is a month roster laid out for a spreadsheet tab
type PublishedDuty struct {
	Year  int
	Month int
	// Header holds the column titles: "Name", "Role", then one column per day
	Header []string
	Rows   [][]string
}

// TabTitle returns the tab a month is published to, e.g. "May 2025"
func TabTitle(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// Values converts the duty into sheet rows, header first
func (d *PublishedDuty) Values() [][]interface{} {
	values := make([][]interface{}, 0, len(d.Rows)+1)
	values = append(values, toRow(d.Header))
	for _, r := range d.Rows {
		values = append(values, toRow(r))
	}
	return values
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// PublishDuty writes a month roster to its own tab, creating the tab if needed.
// An existing tab is cleared first so removed nurses do not linger.
func (c *Client) PublishDuty(spreadsheetID string, duty *PublishedDuty) (string, error) {
	title := TabTitle(duty.Year, duty.Month)

	_, exists, err := c.sheetID(spreadsheetID, title)
	if err != nil {
		return "", err
	}

	if exists {
		if err := c.ClearValues(spreadsheetID, title); err != nil {
			return "", fmt.Errorf("failed to clear tab %s: %w", title, err)
		}
	} else if _, err := c.CreateRosterTab(spreadsheetID, title, len(duty.Rows)+1, len(duty.Header)); err != nil {
		return "", fmt.Errorf("failed to create tab %s: %w", title, err)
	}

	if err := c.UpdateValues(spreadsheetID, fmt.Sprintf("%s!A1", title), duty.Values()); err != nil {
		return "", fmt.Errorf("failed to write tab %s: %w", title, err)
	}
	return title, nil
}

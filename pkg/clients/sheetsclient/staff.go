package sheetsclient

import (
	"fmt"
	"strings"
)

// Expected column names in the staff sheet
var staffFields = []string{
	"Name",
	"Role",
	"Status",
}

// StaffRow is one nurse listed in the staff sheet
type StaffRow struct {
	Name   string
	Role   string
	Active bool
}

// ListStaff retrieves and parses the staff list from a spreadsheet tab
func (c *Client) ListStaff(spreadsheetID, tab string) ([]StaffRow, error) {
	values, err := c.GetValues(spreadsheetID, tab)
	if err != nil {
		return nil, fmt.Errorf("failed to get staff data: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}

	staff, err := parseStaff(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse staff: %w", err)
	}
	return staff, nil
}

// parseStaff converts raw spreadsheet data into staff rows
func parseStaff(raw [][]interface{}) ([]StaffRow, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("no header row found")
	}

	fieldIndexes := make(map[string]int)
	for _, field := range staffFields {
		index := -1
		for i, cell := range raw[0] {
			if s, ok := cell.(string); ok && strings.TrimSpace(s) == field {
				index = i
				break
			}
		}
		if index == -1 {
			return nil, fmt.Errorf("missing required field in header: %s", field)
		}
		fieldIndexes[field] = index
	}

	getField := func(field string, row []interface{}) string {
		index := fieldIndexes[field]
		if index >= len(row) {
			return ""
		}
		if s, ok := row[index].(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}

	staff := make([]StaffRow, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row := raw[i]
		name := getField("Name", row)
		// Skip empty rows
		if name == "" {
			continue
		}

		role := strings.ToLower(getField("Role", row))
		switch role {
		case "":
			role = "nurse"
		case "head", "charge", "nurse":
		default:
			return nil, fmt.Errorf("invalid role %q in row %d", role, i+1)
		}

		staff = append(staff, StaffRow{
			Name:   name,
			Role:   role,
			Active: strings.EqualFold(getField("Status", row), "active"),
		})
	}
	return staff, nil
}

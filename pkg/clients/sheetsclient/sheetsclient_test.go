package sheetsclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabTitle(t *testing.T) {
	assert.Equal(t, "May 2025", TabTitle(2025, 5))
	assert.Equal(t, "December 2024", TabTitle(2024, 12))
}

func TestPublishedDutyValues(t *testing.T) {
	duty := &PublishedDuty{
		Year:   2025,
		Month:  2,
		Header: []string{"Name", "Role", "1", "2"},
		Rows: [][]string{
			{"Lee", "head", "D", "O"},
			{"Kim", "nurse", "N", "N"},
		},
	}

	values := duty.Values()

	require.Len(t, values, 3)
	assert.Equal(t, []interface{}{"Name", "Role", "1", "2"}, values[0])
	assert.Equal(t, []interface{}{"Kim", "nurse", "N", "N"}, values[2])
}

func TestAddRosterTabRequest(t *testing.T) {
	req := addRosterTabRequest("February 2025", 3, 30)

	require.NotNil(t, req.AddSheet)
	props := req.AddSheet.Properties
	assert.Equal(t, "February 2025", props.Title)
	assert.EqualValues(t, 3, props.GridProperties.RowCount)
	assert.EqualValues(t, 30, props.GridProperties.ColumnCount)
	assert.EqualValues(t, 1, props.GridProperties.FrozenRowCount)
	assert.EqualValues(t, 2, props.GridProperties.FrozenColumnCount)
}

func TestParseStaff(t *testing.T) {
	raw := [][]interface{}{
		{"Status", "Name", "Role", "Notes"},
		{"Active", "Kim", "Nurse"},
		{"inactive", "Lee", "head", "on leave"},
		{"Active", "", "nurse"},
		{"Active", "Park"},
	}

	staff, err := parseStaff(raw)
	require.NoError(t, err)
	require.Len(t, staff, 3)

	assert.Equal(t, StaffRow{Name: "Kim", Role: "nurse", Active: true}, staff[0])
	assert.Equal(t, StaffRow{Name: "Lee", Role: "head", Active: false}, staff[1])
	assert.Equal(t, StaffRow{Name: "Park", Role: "nurse", Active: true}, staff[2])
}

func TestParseStaff_MissingColumn(t *testing.T) {
	_, err := parseStaff([][]interface{}{{"Name", "Role"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field in header: Status")
}

func TestParseStaff_InvalidRole(t *testing.T) {
	_, err := parseStaff([][]interface{}{
		{"Name", "Role", "Status"},
		{"Kim", "surgeon", "Active"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

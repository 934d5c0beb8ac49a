package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ShiftCode is the single-character code stored in one roster cell
type ShiftCode string

// Shift codes: day, evening, night, off, mid and unset
const (
	ShiftDay     ShiftCode = "D"
	ShiftEvening ShiftCode = "E"
	ShiftNight   ShiftCode = "N"
	ShiftOff     ShiftCode = "O"
	ShiftMid     ShiftCode = "M"
	ShiftUnset   ShiftCode = "X"
)

var shiftCodes = []ShiftCode{ShiftDay, ShiftEvening, ShiftNight, ShiftOff, ShiftMid, ShiftUnset}

// ParseShiftCode converts a string into a ShiftCode, accepting lower case input
func ParseShiftCode(s string) (ShiftCode, error) {
	code := ShiftCode(strings.ToUpper(strings.TrimSpace(s)))
	if !code.Valid() {
		return "", fmt.Errorf("invalid shift code %q", s)
	}
	return code, nil
}

// Valid reports whether the code is one of the known shift codes
func (c ShiftCode) Valid() bool {
	return slices.Contains(shiftCodes, c)
}

// IsWork reports whether the code represents a worked shift
func (c ShiftCode) IsWork() bool {
	switch c {
	case ShiftDay, ShiftEvening, ShiftNight, ShiftMid:
		return true
	}
	return false
}

// Roles that sort to the top of the grid
const (
	RoleHead   = "head"
	RoleCharge = "charge"
	RoleNurse  = "nurse"
)

// NurseRow is one nurse's shifts for a month, one code per day
type NurseRow struct {
	MemberID int         `json:"memberId"`
	Name     string      `json:"name"`
	Role     string      `json:"role,omitempty"`
	Shifts   []ShiftCode `json:"shifts"`
}

// Elevated reports whether the nurse holds a role that is displayed first
func (r NurseRow) Elevated() bool {
	return r.Role == RoleHead || r.Role == RoleCharge
}

// ShiftString joins the row's shifts into a compact string such as "DDEON"
func (r NurseRow) ShiftString() string {
	var sb strings.Builder
	for _, s := range r.Shifts {
		sb.WriteString(string(s))
	}
	return sb.String()
}

// ParseShifts converts a compact shift string into shift codes
func ParseShifts(s string) ([]ShiftCode, error) {
	shifts := make([]ShiftCode, 0, len(s))
	for i, ch := range s {
		code, err := ParseShiftCode(string(ch))
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i+1, err)
		}
		shifts = append(shifts, code)
	}
	return shifts, nil
}

// RosterGrid is the month's per-nurse, per-day shift assignment table
type RosterGrid struct {
	Year  int        `json:"year"`
	Month int        `json:"month"`
	Rows  []NurseRow `json:"rows"`
}

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NewRow builds a row for the given period with every day unset
func NewRow(year, month, memberID int, name, role string) NurseRow {
	shifts := make([]ShiftCode, DaysInMonth(year, month))
	for i := range shifts {
		shifts[i] = ShiftUnset
	}
	return NurseRow{MemberID: memberID, Name: name, Role: role, Shifts: shifts}
}

// Days returns the number of days of the grid's month
func (g *RosterGrid) Days() int {
	return DaysInMonth(g.Year, g.Month)
}

// Validate checks the grid's period, member uniqueness and row lengths
func (g *RosterGrid) Validate() error {
	if g.Month < 1 || g.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", g.Month)
	}

	days := g.Days()
	seen := make(map[int]bool, len(g.Rows))
	for _, row := range g.Rows {
		if seen[row.MemberID] {
			return fmt.Errorf("duplicate member %d", row.MemberID)
		}
		seen[row.MemberID] = true

		if len(row.Shifts) != days {
			return fmt.Errorf("member %d has %d shifts, expected %d", row.MemberID, len(row.Shifts), days)
		}
		for day, code := range row.Shifts {
			if !code.Valid() {
				return fmt.Errorf("member %d day %d: invalid shift code %q", row.MemberID, day+1, code)
			}
		}
	}
	return nil
}

// SortRows moves elevated roles to the top, keeping the order stable otherwise
func (g *RosterGrid) SortRows() {
	slices.SortStableFunc(g.Rows, func(a, b NurseRow) int {
		switch {
		case a.Elevated() && !b.Elevated():
			return -1
		case !a.Elevated() && b.Elevated():
			return 1
		}
		return 0
	})
}

// Row returns a pointer to the member's row, or nil if the member is not in the grid
func (g *RosterGrid) Row(memberID int) *NurseRow {
	for i := range g.Rows {
		if g.Rows[i].MemberID == memberID {
			return &g.Rows[i]
		}
	}
	return nil
}

// RowIndex returns the display index of the member's row, or -1
func (g *RosterGrid) RowIndex(memberID int) int {
	for i := range g.Rows {
		if g.Rows[i].MemberID == memberID {
			return i
		}
	}
	return -1
}

// SetShift overwrites a single cell. dayIndex is zero based
func (g *RosterGrid) SetShift(memberID, dayIndex int, code ShiftCode) error {
	row := g.Row(memberID)
	if row == nil {
		return fmt.Errorf("member %d not in roster", memberID)
	}
	if dayIndex < 0 || dayIndex >= len(row.Shifts) {
		return fmt.Errorf("day index %d out of range for member %d", dayIndex, memberID)
	}
	row.Shifts[dayIndex] = code
	return nil
}

// Clone returns a deep copy of the grid
func (g RosterGrid) Clone() RosterGrid {
	out := RosterGrid{Year: g.Year, Month: g.Month, Rows: make([]NurseRow, len(g.Rows))}
	for i, row := range g.Rows {
		row.Shifts = slices.Clone(row.Shifts)
		out.Rows[i] = row
	}
	return out
}

// Equal reports whether both grids describe the same period, rows and shifts
func (g RosterGrid) Equal(other RosterGrid) bool {
	if g.Year != other.Year || g.Month != other.Month || len(g.Rows) != len(other.Rows) {
		return false
	}
	for i := range g.Rows {
		a, b := g.Rows[i], other.Rows[i]
		if a.MemberID != b.MemberID || a.Name != b.Name || a.Role != b.Role || !slices.Equal(a.Shifts, b.Shifts) {
			return false
		}
	}
	return true
}

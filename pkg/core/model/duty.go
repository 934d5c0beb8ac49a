package model

import (
	"slices"
	"time"
)

// CellEdit is a user's change of one roster cell. DayIndex is zero based
type CellEdit struct {
	MemberID int
	Name     string
	DayIndex int
	Before   ShiftCode
	After    ShiftCode
	Year     int
	Month    int
}

// PendingEdit is a queued cell edit waiting to be flushed to the server
type PendingEdit struct {
	MemberID  int
	Name      string
	DayIndex  int
	Before    ShiftCode
	After     ShiftCode
	Timestamp time.Time
}

// HistoryEntry is a server-recorded state transition of the roster.
// Idx is assigned by the server and is monotonic but not necessarily contiguous.
type HistoryEntry struct {
	Idx           int       `json:"idx"`
	Name          string    `json:"name"`
	ModifiedDay   int       `json:"modifiedDay"`
	Before        ShiftCode `json:"before,omitempty"`
	After         ShiftCode `json:"after,omitempty"`
	IsAutoCreated bool      `json:"isAutoCreated"`
}

// RuleViolation is a scheduling rule broken by a nurse over a range of days.
// Dates are days of the month; an EndDate of zero means a single day.
type RuleViolation struct {
	Name      string `json:"name"`
	MemberID  int    `json:"memberId"`
	StartDate int    `json:"startDate"`
	EndDate   int    `json:"endDate,omitempty"`
	Message   string `json:"message"`
}

// End returns the last day covered by the violation
func (v RuleViolation) End() int {
	if v.EndDate < v.StartDate {
		return v.StartDate
	}
	return v.EndDate
}

// Span returns the number of days covered by the violation, at least one
func (v RuleViolation) Span() int {
	return v.End() - v.StartDate + 1
}

// RequestState is the decision on a nurse's shift request
type RequestState string

// Request states
const (
	RequestAccepted RequestState = "ACCEPTED"
	RequestHold     RequestState = "HOLD"
	RequestDenied   RequestState = "DENIED"
)

// Valid reports whether the state is a known request state
func (s RequestState) Valid() bool {
	return s == RequestAccepted || s == RequestHold || s == RequestDenied
}

// RequestStatus is the status of one nurse's request for one day
type RequestStatus struct {
	MemberID int          `json:"memberId"`
	Date     int          `json:"date"`
	Status   RequestState `json:"status"`
	Message  string       `json:"message"`
}

// Duty is the full read model for a month: the grid, its violations and its history
type Duty struct {
	RosterGrid
	Issues    []RuleViolation `json:"issues"`
	Histories []HistoryEntry  `json:"histories"`
}

// Clone returns a deep copy of the duty
func (d Duty) Clone() Duty {
	return Duty{
		RosterGrid: d.RosterGrid.Clone(),
		Issues:     slices.Clone(d.Issues),
		Histories:  slices.Clone(d.Histories),
	}
}

// DutyQuery selects the month to read. Zero Year/Month leave the choice to the server,
// a non-nil History restores the grid recorded at that history index.
type DutyQuery struct {
	Year    int
	Month   int
	History *int
}

// HistoryWrite is one history entry sent to the server in an update
type HistoryWrite struct {
	MemberID      int       `json:"memberId" validate:"required,min=1"`
	Name          string    `json:"name" validate:"required"`
	Before        ShiftCode `json:"before" validate:"required,oneof=D E N O M X"`
	After         ShiftCode `json:"after" validate:"required,oneof=D E N O M X"`
	ModifiedDay   int       `json:"modifiedDay" validate:"required,min=1,max=31"`
	IsAutoCreated bool      `json:"isAutoCreated"`
}

// DutyUpdate appends one history entry and applies it server side
type DutyUpdate struct {
	Year    int          `json:"year" validate:"required,min=1900"`
	Month   int          `json:"month" validate:"required,min=1,max=12"`
	History HistoryWrite `json:"history" validate:"required"`
}

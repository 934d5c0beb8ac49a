package db

import "time"

// Member represents a nurse on the ward
type Member struct {
	ID     int
	Name   string
	Role   string
	Active bool
}

// Cell represents one stored shift assignment. Unset days are not stored.
type Cell struct {
	MemberID int
	Day      int
	Shift    string
}

// History represents one recorded change of a month's roster, with the grid as it was
// after the change
type History struct {
	ID            string
	Idx           int
	Year          int
	Month         int
	MemberID      int
	Name          string
	ModifiedDay   int
	Before        string
	After         string
	IsAutoCreated bool
	Snapshot      []byte
	CreatedAt     time.Time
}

// Request represents a nurse's request for a specific day and its decision
type Request struct {
	ID       string
	Year     int
	Month    int
	MemberID int
	Day      int
	Status   string
	Message  string
}

package db

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// MemberStore defines the interface for member database operations
type MemberStore interface {
	GetMembers(ctx context.Context) ([]Member, error)
	InsertMember(ctx context.Context, member *Member) error
}

// MonthEdit computes a month's new cells from its stored cells. A nil history records
// no entry. An error aborts the edit and is returned unchanged by EditMonth.
type MonthEdit func(cells []Cell) ([]Cell, *History, error)

// DutyStore defines the interface for roster and history database operations
type DutyStore interface {
	GetCells(ctx context.Context, year, month int) ([]Cell, error)
	// EditMonth reads the month's cells, replaces them with the result of edit and records
	// the returned history, all in one transaction. Edits of the same month run one at a
	// time. It returns the idx assigned to the history record.
	EditMonth(ctx context.Context, year, month int, edit MonthEdit) (int, error)
	GetHistories(ctx context.Context, year, month int) ([]History, error)
	GetHistory(ctx context.Context, idx int) (*History, error)
}

// RequestStore defines the interface for shift request database operations
type RequestStore interface {
	GetRequests(ctx context.Context, year, month int) ([]Request, error)
	InsertRequest(ctx context.Context, request *Request) error
}

// Database defines the interface for all database operations.
// Both postgres.DB and sqlite.Store implement this interface.
type Database interface {
	MemberStore
	DutyStore
	RequestStore
	Close()
}

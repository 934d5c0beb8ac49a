// Package sqlite stores rosters in a single SQLite file. It backs local and offline use of
// the duty server; the schema mirrors the postgres migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jakechorley/nurse-duty/pkg/db"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Store provides roster persistence on SQLite
type Store struct {
	db *sql.DB
}

var _ db.Database = (*Store)(nil)

// New opens the database at path and creates the schema if needed
func New(path string) (*Store, error) {
	// immediate transactions take the write lock up front, so month edits serialize
	// across processes too
	dsn := path + "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	if path != MemoryPath {
		dsn += "&_journal_mode=WAL"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	conn.SetMaxOpenConns(1)

	s := &Store{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS member (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		name   TEXT    NOT NULL,
		role   TEXT    NOT NULL DEFAULT 'nurse',
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS duty_cell (
		year      INTEGER NOT NULL,
		month     INTEGER NOT NULL,
		member_id INTEGER NOT NULL,
		day       INTEGER NOT NULL,
		shift     TEXT    NOT NULL,
		PRIMARY KEY (year, month, member_id, day)
	);

	CREATE TABLE IF NOT EXISTS duty_history (
		idx             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT    NOT NULL UNIQUE,
		year            INTEGER NOT NULL,
		month           INTEGER NOT NULL,
		member_id       INTEGER NOT NULL DEFAULT 0,
		name            TEXT    NOT NULL,
		modified_day    INTEGER NOT NULL DEFAULT 0,
		before_shift    TEXT    NOT NULL DEFAULT '',
		after_shift     TEXT    NOT NULL DEFAULT '',
		is_auto_created INTEGER NOT NULL DEFAULT 0,
		snapshot        BLOB    NOT NULL,
		created_at      TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS duty_history_period ON duty_history (year, month);

	CREATE TABLE IF NOT EXISTS shift_request (
		id        TEXT    PRIMARY KEY,
		year      INTEGER NOT NULL,
		month     INTEGER NOT NULL,
		member_id INTEGER NOT NULL,
		day       INTEGER NOT NULL,
		status    TEXT    NOT NULL,
		message   TEXT    NOT NULL DEFAULT ''
	);
	`)
	return err
}

// GetMembers retrieves all active members ordered by ID
func (s *Store) GetMembers(ctx context.Context) ([]db.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, role, active FROM member WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []db.Member
	for rows.Next() {
		var m db.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.Active); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

// InsertMember inserts a member and sets its generated ID
func (s *Store) InsertMember(ctx context.Context, member *db.Member) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO member (name, role, active) VALUES (?, ?, ?)`,
		member.Name, member.Role, member.Active)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read member id: %w", err)
	}
	member.ID = int(id)
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetCells retrieves the stored cells of a month
func (s *Store) GetCells(ctx context.Context, year, month int) ([]db.Cell, error) {
	return queryCells(ctx, s.db, year, month)
}

func queryCells(ctx context.Context, q queryer, year, month int) ([]db.Cell, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT member_id, day, shift FROM duty_cell
		WHERE year = ? AND month = ?
		ORDER BY member_id, day`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var cells []db.Cell
	for rows.Next() {
		var c db.Cell
		if err := rows.Scan(&c.MemberID, &c.Day, &c.Shift); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cells: %w", err)
	}
	return cells, nil
}

// EditMonth reads, edits and rewrites the month inside one immediate transaction
func (s *Store) EditMonth(ctx context.Context, year, month int, edit db.MonthEdit) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := queryCells(ctx, tx, year, month)
	if err != nil {
		return 0, err
	}
	cells, history, err := edit(current)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM duty_cell WHERE year = ? AND month = ?`, year, month); err != nil {
		return 0, fmt.Errorf("failed to clear cells: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO duty_cell (year, month, member_id, day, shift) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range cells {
		if _, err := stmt.ExecContext(ctx, year, month, c.MemberID, c.Day, c.Shift); err != nil {
			return 0, fmt.Errorf("failed to insert cell: %w", err)
		}
	}

	idx := 0
	if history != nil {
		if history.ID == "" {
			history.ID = uuid.NewString()
		}
		history.CreatedAt = time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO duty_history
				(id, year, month, member_id, name, modified_day, before_shift, after_shift, is_auto_created, snapshot, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			history.ID, year, month, history.MemberID, history.Name, history.ModifiedDay,
			history.Before, history.After, history.IsAutoCreated, history.Snapshot,
			history.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return 0, fmt.Errorf("failed to insert history: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read history idx: %w", err)
		}
		idx = int(id)
		history.Idx = idx
		history.Year = year
		history.Month = month
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cells: %w", err)
	}
	return idx, nil
}

const historyColumns = `idx, id, year, month, member_id, name, modified_day, before_shift, after_shift, is_auto_created, snapshot, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(row scanner) (db.History, error) {
	var h db.History
	var createdAt string
	err := row.Scan(&h.Idx, &h.ID, &h.Year, &h.Month, &h.MemberID, &h.Name, &h.ModifiedDay,
		&h.Before, &h.After, &h.IsAutoCreated, &h.Snapshot, &createdAt)
	if err != nil {
		return h, err
	}
	h.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return h, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return h, nil
}

// GetHistories retrieves a month's history records ordered by idx
func (s *Store) GetHistories(ctx context.Context, year, month int) ([]db.History, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+` FROM duty_history
		WHERE year = ? AND month = ?
		ORDER BY idx`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query histories: %w", err)
	}
	defer rows.Close()

	var histories []db.History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		histories = append(histories, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating histories: %w", err)
	}
	return histories, nil
}

// GetHistory retrieves one history record by idx
func (s *Store) GetHistory(ctx context.Context, idx int) (*db.History, error) {
	h, err := scanHistory(s.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM duty_history WHERE idx = ?`, idx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history %d: %w", idx, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history %d: %w", idx, err)
	}
	return &h, nil
}

// GetRequests retrieves a month's shift requests ordered by day
func (s *Store) GetRequests(ctx context.Context, year, month int) ([]db.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, month, member_id, day, status, message FROM shift_request
		WHERE year = ? AND month = ?
		ORDER BY day, member_id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []db.Request
	for rows.Next() {
		var r db.Request
		if err := rows.Scan(&r.ID, &r.Year, &r.Month, &r.MemberID, &r.Day, &r.Status, &r.Message); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return requests, nil
}

// InsertRequest inserts a shift request, generating its ID if unset
func (s *Store) InsertRequest(ctx context.Context, request *db.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_request (id, year, month, member_id, day, status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		request.ID, request.Year, request.Month, request.MemberID, request.Day, request.Status, request.Message)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

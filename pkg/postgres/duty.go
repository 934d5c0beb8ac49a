package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/nurse-duty/pkg/db"
)

// monthLockSpace is the first key of the advisory lock taken per edited month
const monthLockSpace = 7342002

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// GetCells retrieves the stored cells of a month
func (d *DB) GetCells(ctx context.Context, year, month int) ([]db.Cell, error) {
	return queryCells(ctx, d.pool, year, month)
}

func queryCells(ctx context.Context, q querier, year, month int) ([]db.Cell, error) {
	rows, err := q.Query(ctx, `
		SELECT member_id, day, shift
		FROM duty_cell
		WHERE year = $1 AND month = $2
		ORDER BY member_id, day
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	cells, err := pgx.CollectRows(rows, pgx.RowToStructByPos[db.Cell])
	if err != nil {
		return nil, fmt.Errorf("failed to scan cells: %w", err)
	}
	return cells, nil
}

// EditMonth runs edit under a transaction-scoped advisory lock on the month, so concurrent
// edits of one month read each other's committed cells
func (d *DB) EditMonth(ctx context.Context, year, month int, edit db.MonthEdit) (int, error) {
	idx := 0
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, monthLockSpace, year*100+month); err != nil {
			return fmt.Errorf("failed to lock %d-%02d: %w", year, month, err)
		}

		current, err := queryCells(ctx, tx, year, month)
		if err != nil {
			return err
		}
		cells, history, err := edit(current)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM duty_cell WHERE year = $1 AND month = $2`, year, month); err != nil {
			return fmt.Errorf("failed to clear cells: %w", err)
		}
		rows := make([][]any, 0, len(cells))
		for _, c := range cells {
			rows = append(rows, []any{year, month, c.MemberID, c.Day, c.Shift})
		}
		if len(rows) > 0 {
			_, err := tx.CopyFrom(ctx,
				pgx.Identifier{"duty_cell"},
				[]string{"year", "month", "member_id", "day", "shift"},
				pgx.CopyFromRows(rows))
			if err != nil {
				return fmt.Errorf("failed to insert cells: %w", err)
			}
		}

		if history == nil {
			return nil
		}
		if history.ID == "" {
			history.ID = uuid.NewString()
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO duty_history
				(id, year, month, member_id, name, modified_day, before_shift, after_shift, is_auto_created, snapshot)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING idx, created_at
		`, history.ID, year, month, history.MemberID, history.Name, history.ModifiedDay,
			history.Before, history.After, history.IsAutoCreated, history.Snapshot,
		).Scan(&idx, &history.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
		history.Idx = idx
		history.Year = year
		history.Month = month
		return nil
	})
	if err != nil {
		return 0, err
	}
	return idx, nil
}

const historyColumns = `idx, id, year, month, member_id, name, modified_day, before_shift, after_shift, is_auto_created, snapshot, created_at`

func scanHistory(row pgx.Row) (db.History, error) {
	var h db.History
	var id uuid.UUID
	err := row.Scan(&h.Idx, &id, &h.Year, &h.Month, &h.MemberID, &h.Name, &h.ModifiedDay,
		&h.Before, &h.After, &h.IsAutoCreated, &h.Snapshot, &h.CreatedAt)
	h.ID = id.String()
	return h, err
}

// GetHistories retrieves a month's history records ordered by idx
func (d *DB) GetHistories(ctx context.Context, year, month int) ([]db.History, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM duty_history
		WHERE year = $1 AND month = $2
		ORDER BY idx
	`, year, month)
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
func (d *DB) GetHistory(ctx context.Context, idx int) (*db.History, error) {
	h, err := scanHistory(d.pool.QueryRow(ctx, `
		SELECT `+historyColumns+`
		FROM duty_history
		WHERE idx = $1
	`, idx))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("history %d: %w", idx, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history %d: %w", idx, err)
	}
	return &h, nil
}

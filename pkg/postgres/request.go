package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jakechorley/nurse-duty/pkg/db"
)

// GetRequests retrieves a month's shift requests ordered by day
func (d *DB) GetRequests(ctx context.Context, year, month int) ([]db.Request, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, year, month, member_id, day, status, message
		FROM shift_request
		WHERE year = $1 AND month = $2
		ORDER BY day, member_id
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []db.Request
	for rows.Next() {
		var r db.Request
		var id uuid.UUID
		if err := rows.Scan(&id, &r.Year, &r.Month, &r.MemberID, &r.Day, &r.Status, &r.Message); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.ID = id.String()
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return requests, nil
}

// InsertRequest inserts a shift request, generating its ID if unset
func (d *DB) InsertRequest(ctx context.Context, request *db.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO shift_request (id, year, month, member_id, day, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, request.ID, request.Year, request.Month, request.MemberID, request.Day, request.Status, request.Message)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

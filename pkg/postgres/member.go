package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/nurse-duty/pkg/db"
)

// GetMembers retrieves all active members ordered by ID
func (d *DB) GetMembers(ctx context.Context) ([]db.Member, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, role, active
		FROM member
		WHERE active
		ORDER BY id
	`)
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
func (d *DB) InsertMember(ctx context.Context, member *db.Member) error {
	err := d.pool.QueryRow(ctx, `
		INSERT INTO member (name, role, active)
		VALUES ($1, $2, $3)
		RETURNING id
	`, member.Name, member.Role, member.Active).Scan(&member.ID)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

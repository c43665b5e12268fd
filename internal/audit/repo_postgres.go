package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo stores events in the audit_events table
// (migrations/0001_init.sql). Insert-only by contract.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, user_id, call_id, action, status, disposition, message, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.UserID,
		e.CallID,
		e.Action,
		e.Status,
		e.Disposition,
		e.Message,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Event, error) {
	const q = `
SELECT id, type, user_id, call_id, action, status, disposition, message, created_at
FROM audit_events
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.UserID, &e.CallID, &e.Action, &e.Status, &e.Disposition, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store is the durable home of call records. "Not found" is not an error for
// lookups; only genuine I/O failures are returned as errors, and callers
// treat those as retryable (the call itself has already been placed with the
// provider regardless of local storage issues).
type Store interface {
	// Insert stores a fresh pending record. Callers must guarantee freshly
	// generated call ids.
	Insert(ctx context.Context, rec CallRecord) error

	// UpdateStatus unconditionally sets the status (and provider id when
	// non-empty). A missing call_id is a logged no-op, not an error.
	UpdateStatus(ctx context.Context, callID string, status Status, providerCallID string) error

	// Resolve transitions a record out of pending into a terminal status.
	// It reports whether this call won the transition; a false return means
	// the record was already resolved (or never existed) and the caller must
	// not act on it.
	Resolve(ctx context.Context, callID string, status Status, providerCallID string) (bool, error)

	// FindByProviderID is an exact-match lookup on the provider's call id.
	FindByProviderID(ctx context.Context, providerCallID string) (CallRecord, bool, error)

	// FindByTargetAndWindow returns the most recent record for target whose
	// start_time lies within maxAge of now and whose status is in statuses.
	// Ties break by most recent start_time, then smallest call_id.
	FindByTargetAndWindow(ctx context.Context, target string, maxAge time.Duration, statuses []Status) (CallRecord, bool, error)

	// ListRecent returns records newer than maxAge, most recent first.
	// Diagnostics and the admin API use it; correlation never does.
	ListRecent(ctx context.Context, maxAge time.Duration) ([]CallRecord, error)

	// MarkTimedOut moves pending records older than olderThan into
	// StatusTimeout and returns them so callers can notify the requesters.
	MarkTimedOut(ctx context.Context, olderThan time.Duration) ([]CallRecord, error)

	// Prune deletes records older than olderThan and returns the count.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PostgresStore implements Store on the call_tracking table
// (migrations/0001_init.sql). The secondary index on
// (target_number, start_time) backs the windowed lookup.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Insert(ctx context.Context, rec CallRecord) error {
	const q = `
INSERT INTO call_tracking (
  call_id, user_id, chat_id, action_type, target_number, start_time, status, provider_call_id
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := s.db.ExecContext(ctx, q,
		rec.CallID,
		rec.UserID,
		rec.ChatID,
		string(rec.Action),
		rec.TargetNumber,
		rec.StartTime,
		string(rec.Status),
		rec.ProviderCallID,
	)
	if err != nil {
		return fmt.Errorf("insert call %s: %w", rec.CallID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, callID string, status Status, providerCallID string) error {
	const q = `
UPDATE call_tracking
SET status = $2,
    provider_call_id = CASE WHEN $3 <> '' THEN $3 ELSE provider_call_id END
WHERE call_id = $1
`
	res, err := s.db.ExecContext(ctx, q, callID, string(status), providerCallID)
	if err != nil {
		return fmt.Errorf("update call %s: %w", callID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Missing record is a no-op; the caller's logger surfaces it.
		return nil
	}
	return nil
}

func (s *PostgresStore) Resolve(ctx context.Context, callID string, status Status, providerCallID string) (bool, error) {
	// The WHERE status clause is the single-winner guarantee: two concurrent
	// notifications racing for the same record see exactly one row affected.
	const q = `
UPDATE call_tracking
SET status = $2,
    provider_call_id = CASE WHEN $3 <> '' THEN $3 ELSE provider_call_id END
WHERE call_id = $1 AND status = $4
`
	res, err := s.db.ExecContext(ctx, q, callID, string(status), providerCallID, string(StatusPending))
	if err != nil {
		return false, fmt.Errorf("resolve call %s: %w", callID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve call %s: %w", callID, err)
	}
	return n == 1, nil
}

func (s *PostgresStore) FindByProviderID(ctx context.Context, providerCallID string) (CallRecord, bool, error) {
	const q = `
SELECT call_id, user_id, chat_id, action_type, target_number, start_time, status, provider_call_id
FROM call_tracking
WHERE provider_call_id = $1
ORDER BY start_time DESC
LIMIT 1
`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, false, nil
		}
		return CallRecord{}, false, err
	}
	return rec, true, nil
}

func (s *PostgresStore) FindByTargetAndWindow(ctx context.Context, target string, maxAge time.Duration, statuses []Status) (CallRecord, bool, error) {
	if len(statuses) == 0 {
		return CallRecord{}, false, nil
	}
	cutoff := s.now().Add(-maxAge)

	args := []any{target, cutoff}
	ph := make([]string, 0, len(statuses))
	for i, st := range statuses {
		ph = append(ph, fmt.Sprintf("$%d", i+3))
		args = append(args, string(st))
	}
	q := fmt.Sprintf(`
SELECT call_id, user_id, chat_id, action_type, target_number, start_time, status, provider_call_id
FROM call_tracking
WHERE target_number = $1 AND start_time > $2 AND status IN (%s)
ORDER BY start_time DESC, call_id ASC
LIMIT 1
`, strings.Join(ph, ","))

	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, false, nil
		}
		return CallRecord{}, false, err
	}
	return rec, true, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, maxAge time.Duration) ([]CallRecord, error) {
	cutoff := s.now().Add(-maxAge)
	const q = `
SELECT call_id, user_id, chat_id, action_type, target_number, start_time, status, provider_call_id
FROM call_tracking
WHERE start_time > $1
ORDER BY start_time DESC
`
	rows, err := s.db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list recent calls: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkTimedOut(ctx context.Context, olderThan time.Duration) ([]CallRecord, error) {
	cutoff := s.now().Add(-olderThan)
	const q = `
UPDATE call_tracking
SET status = $1
WHERE status = $2 AND start_time < $3
RETURNING call_id, user_id, chat_id, action_type, target_number, start_time, status, provider_call_id
`
	rows, err := s.db.QueryContext(ctx, q, string(StatusTimeout), string(StatusPending), cutoff)
	if err != nil {
		return nil, fmt.Errorf("mark timed out: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	const q = `DELETE FROM call_tracking WHERE start_time < $1`
	res, err := s.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune calls: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (CallRecord, error) {
	var rec CallRecord
	var action, status string
	if err := r.Scan(
		&rec.CallID,
		&rec.UserID,
		&rec.ChatID,
		&action,
		&rec.TargetNumber,
		&rec.StartTime,
		&status,
		&rec.ProviderCallID,
	); err != nil {
		return CallRecord{}, err
	}
	rec.Action = ActionType(action)
	rec.Status = Status(status)
	return rec, nil
}

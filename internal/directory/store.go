package directory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinic-concierge/pkg/utils"
)

// Store persists clients and users. Lookup misses are reported with the ok
// flag, not an error.
type Store interface {
	UpsertClient(ctx context.Context, c Client) error

	// UpsertClients writes a batch atomically; the CRM sync uses it so a
	// failure mid-page never leaves a half-written page behind.
	UpsertClients(ctx context.Context, cs []Client) error

	FindClientByPhone(ctx context.Context, phone string) (Client, bool, error)
	CountClients(ctx context.Context) (int64, error)

	UpsertUser(ctx context.Context, u User) error
	FindUser(ctx context.Context, telegramID int64) (User, bool, error)
}

// PostgresStore implements Store on the clients and users tables
// (migrations/0001_init.sql).
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) UpsertClient(ctx context.Context, c Client) error {
	const q = `
INSERT INTO clients (id, first_name, last_name, phone, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  first_name = EXCLUDED.first_name,
  last_name  = EXCLUDED.last_name,
  phone      = EXCLUDED.phone,
  updated_at = EXCLUDED.updated_at
`
	_, err := s.db.ExecContext(ctx, q, c.ID, c.FirstName, c.LastName, c.Phone, s.now().UTC())
	return err
}

func (s *PostgresStore) UpsertClients(ctx context.Context, cs []Client) error {
	if len(cs) == 0 {
		return nil
	}
	const q = `
INSERT INTO clients (id, first_name, last_name, phone, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  first_name = EXCLUDED.first_name,
  last_name  = EXCLUDED.last_name,
  phone      = EXCLUDED.phone,
  updated_at = EXCLUDED.updated_at
`
	now := s.now().UTC()
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range cs {
			if _, err := tx.ExecContext(ctx, q, c.ID, c.FirstName, c.LastName, c.Phone, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) FindClientByPhone(ctx context.Context, phone string) (Client, bool, error) {
	const q = `
SELECT id, first_name, last_name, phone, updated_at
FROM clients
WHERE phone = $1
LIMIT 1
`
	var c Client
	err := s.db.QueryRowContext(ctx, q, phone).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, false, nil
	}
	if err != nil {
		return Client{}, false, err
	}
	return c, true, nil
}

func (s *PostgresStore) CountClients(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n)
	return n, err
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (telegram_id, phone, username, first_name, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (telegram_id) DO UPDATE SET
  phone      = EXCLUDED.phone,
  username   = EXCLUDED.username,
  first_name = EXCLUDED.first_name
`
	_, err := s.db.ExecContext(ctx, q, u.TelegramID, u.Phone, u.Username, u.FirstName, s.now().UTC())
	return err
}

func (s *PostgresStore) FindUser(ctx context.Context, telegramID int64) (User, bool, error) {
	const q = `
SELECT telegram_id, phone, username, first_name, created_at
FROM users
WHERE telegram_id = $1
`
	var u User
	err := s.db.QueryRowContext(ctx, q, telegramID).Scan(&u.TelegramID, &u.Phone, &u.Username, &u.FirstName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

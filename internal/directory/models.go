// Package directory is the client whitelist: patients synced from the CRM
// and the Telegram users who have shared their contact. Authorization is an
// exact match between the user's normalized phone and a client record.
package directory

import "time"

// Client is a patient record mirrored from the CRM.
type Client struct {
	ID        string    `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Phone     string    `json:"phone" db:"phone"` // normalized
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User is a Telegram account that has shared its contact with the bot.
type User struct {
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Phone      string    `json:"phone" db:"phone"` // normalized
	Username   string    `json:"username,omitempty" db:"username"`
	FirstName  string    `json:"first_name,omitempty" db:"first_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

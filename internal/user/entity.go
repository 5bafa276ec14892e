// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

// User is a registered account. Email is stored lowercased; username keeps
// the casing it was registered with but is unique case-insensitively.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

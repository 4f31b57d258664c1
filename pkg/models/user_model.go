package models

import (
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
)

// User maps to table `users`
type User struct {
	ID        int64
	Username  string
	Password  string // pbkdf2-sha256 or bcrypt hash
	FullName  string
	Theme     pkg.Theme
	CreatedAt time.Time
	UpdatedAt time.Time
}

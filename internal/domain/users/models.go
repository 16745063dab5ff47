package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/dirtsid3r/cellflip/pkg/auth"
)

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Phone     string    `json:"phone" db:"phone"`
	FullName  string    `json:"full_name" db:"full_name"`
	City      string    `json:"city" db:"city"`
	Role      auth.Role `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Session is the result of a successful login.
type Session struct {
	User        *User
	AccessToken string
	ExpiresAt   time.Time
}

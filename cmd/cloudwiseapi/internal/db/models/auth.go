package models

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles lists every valid role, least privileged first.
var Roles = []Role{RoleUser, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// User is the local record of an identity provider subject. Optional profile
// fields are stored as empty strings, never NULL.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Subject     string    `bun:"subject,notnull,unique" json:"subject"` // e.g. "auth0|abc123"
	Email       string    `bun:"email,notnull" json:"email"`
	GivenName   string    `bun:"given_name,notnull" json:"given_name"`
	FamilyName  string    `bun:"family_name,notnull" json:"family_name"`
	Picture     string    `bun:"picture,notnull" json:"picture"`
	Role        Role      `bun:"role,notnull,default:'user'" json:"role"`
	LastLoginAt time.Time `bun:"last_login_at,notnull" json:"last_login_at"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// IDString returns the primary key formatted for logs and path parameters.
func (u *User) IDString() string {
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

package bunx

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered UUID string for text primary keys such as
// audit log ids. It panics only if the system entropy source fails.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID; path params are checked
// before hitting the database.
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}

// Package access holds the authorization policy: the global role hierarchy and
// per-event access resolution.
package access

import "github.com/meetup-ops/backend/internal/models"

// HasMinimumRole reports whether actual ranks at or above required.
// Unknown roles on either side never grant access.
func HasMinimumRole(actual, required models.Role) bool {
	if !actual.Valid() || !required.Valid() {
		return false
	}
	return actual.Rank() >= required.Rank()
}

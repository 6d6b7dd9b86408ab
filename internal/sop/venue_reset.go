package sop

import "strings"

// VenueResetReason is recorded on tasks reset after a confirmed venue is unlinked.
const VenueResetReason = "confirmed venue partner removed from event"

// IsVenueConfirmationTask reports whether a task title looks like a venue confirmation step:
// it must contain both "venue" and "confirm", case-insensitively.
//
// TODO: replace the title heuristic with a structural tag on the blueprint; renaming
// the task in a template silently disables the reset.
func IsVenueConfirmationTask(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "venue") && strings.Contains(t, "confirm")
}

package audit

import (
	"reflect"

	"github.com/meetup-ops/backend/internal/models"
)

// DiffChanges returns one entry per key, present in either map, whose values differ.
// Values are compared structurally, so equal slices or maps do not count as a change.
// JSON null and an absent key are treated alike: a key missing on one side compares as nil,
// so a nil value never shows up as a change against a missing key.
func DiffChanges(before, after map[string]any) map[string]models.Change {
	diff := make(map[string]models.Change)
	for k, from := range before {
		to := after[k]
		if !reflect.DeepEqual(from, to) {
			diff[k] = models.Change{From: from, To: to}
		}
	}
	for k, to := range after {
		if _, seen := before[k]; seen {
			continue
		}
		if to != nil {
			diff[k] = models.Change{From: nil, To: to}
		}
	}
	return diff
}

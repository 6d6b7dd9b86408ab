// Package sop turns SOP templates into dated checklists for events and manages
// the resulting tasks.
package sop

import (
	"sort"
	"strings"
	"time"

	"github.com/meetup-ops/backend/internal/models"
)

// sectionOrder is the display order of sections.
var sectionOrder = map[models.Section]int{
	models.SectionPreEvent:  0,
	models.SectionOnDay:     1,
	models.SectionPostEvent: 2,
}

// SectionLabel is the human label of a section, also the default subcategory.
func SectionLabel(s models.Section) string {
	switch s {
	case models.SectionPreEvent:
		return "Pre-Event"
	case models.SectionOnDay:
		return "On-Day"
	case models.SectionPostEvent:
		return "Post-Event"
	}
	return string(s)
}

// PlannedTask is a task derived from a blueprint, not yet persisted.
type PlannedTask struct {
	Title     string
	Priority  models.Priority
	SortOrder int
	Deadline  *time.Time
}

// PlannedChecklist is a checklist derived from a template, not yet persisted.
type PlannedChecklist struct {
	Section     models.Section
	Subcategory string
	Title       string
	SortOrder   int
	Tasks       []PlannedTask
}

// ResolveSection returns the blueprint's explicit section when valid, otherwise the
// section implied by the sign of RelativeDays. Blueprints without RelativeDays fall on the day.
func ResolveSection(b models.TaskBlueprint) models.Section {
	if b.Section.Valid() {
		return b.Section
	}
	switch {
	case b.RelativeDays == nil || *b.RelativeDays == 0:
		return models.SectionOnDay
	case *b.RelativeDays > 0:
		return models.SectionPreEvent
	default:
		return models.SectionPostEvent
	}
}

// ResolvePriority returns the blueprint priority, or MEDIUM when missing or unknown.
func ResolvePriority(p models.Priority) models.Priority {
	if p.Valid() {
		return p
	}
	return models.PriorityMedium
}

// Deadline is eventDate shifted back by relativeDays calendar days; nil when absent.
func Deadline(eventDate time.Time, relativeDays *int) *time.Time {
	if relativeDays == nil {
		return nil
	}
	d := eventDate.AddDate(0, 0, -*relativeDays)
	return &d
}

// ApplyTemplate derives ordered checklists for an event dated eventDate.
// Groups are keyed by (section, subcategory) in first-seen order, then stably
// sorted PRE_EVENT, ON_DAY, POST_EVENT. Tasks keep blueprint order.
func ApplyTemplate(eventDate time.Time, blueprints []models.TaskBlueprint) []PlannedChecklist {
	type groupKey struct {
		section     models.Section
		subcategory string
	}
	var groups []*PlannedChecklist
	index := make(map[groupKey]*PlannedChecklist)

	for _, b := range blueprints {
		section := ResolveSection(b)
		sub := strings.TrimSpace(b.Subcategory)
		if sub == "" {
			sub = SectionLabel(section)
		}
		k := groupKey{section, sub}
		g, ok := index[k]
		if !ok {
			g = &PlannedChecklist{
				Section:     section,
				Subcategory: sub,
				Title:       SectionLabel(section) + ": " + sub,
			}
			index[k] = g
			groups = append(groups, g)
		}
		g.Tasks = append(g.Tasks, PlannedTask{
			Title:     b.Title,
			Priority:  ResolvePriority(b.Priority),
			SortOrder: len(g.Tasks),
			Deadline:  Deadline(eventDate, b.RelativeDays),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return sectionOrder[groups[i].Section] < sectionOrder[groups[j].Section]
	})

	out := make([]PlannedChecklist, 0, len(groups))
	for _, g := range groups {
		if len(g.Tasks) == 0 {
			continue
		}
		g.SortOrder = len(out)
		out = append(out, *g)
	}
	return out
}

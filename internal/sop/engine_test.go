package sop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-ops/backend/internal/models"
)

func days(n int) *int { return &n }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyTemplateTwoSections(t *testing.T) {
	eventDate := date(2026, time.June, 15)
	lists := ApplyTemplate(eventDate, []models.TaskBlueprint{
		{Title: "A", RelativeDays: days(30), Priority: models.PriorityCritical},
		{Title: "B", RelativeDays: days(-7), Priority: models.PriorityLow},
	})

	require.Len(t, lists, 2)

	pre, post := lists[0], lists[1]
	assert.Equal(t, "Pre-Event: Pre-Event", pre.Title)
	assert.Equal(t, "Post-Event: Post-Event", post.Title)
	assert.Less(t, pre.SortOrder, post.SortOrder)

	require.Len(t, pre.Tasks, 1)
	assert.Equal(t, "A", pre.Tasks[0].Title)
	assert.Equal(t, models.PriorityCritical, pre.Tasks[0].Priority)
	assert.Equal(t, date(2026, time.May, 16), *pre.Tasks[0].Deadline)

	require.Len(t, post.Tasks, 1)
	assert.Equal(t, "B", post.Tasks[0].Title)
	assert.Equal(t, date(2026, time.June, 22), *post.Tasks[0].Deadline)
}

func TestApplyTemplateGroupsAndOrders(t *testing.T) {
	eventDate := date(2026, time.March, 10)
	lists := ApplyTemplate(eventDate, []models.TaskBlueprint{
		{Title: "Thank speakers", RelativeDays: days(-1)},
		{Title: "Book venue", RelativeDays: days(45), Subcategory: "Logistics"},
		{Title: "Open doors", RelativeDays: days(0)},
		{Title: "Announce", RelativeDays: days(21), Subcategory: "Promotion"},
		{Title: "Order pizza", RelativeDays: days(3), Subcategory: "Logistics"},
		{Title: "Upload slides", Section: models.SectionPostEvent},
	})

	titles := make([]string, len(lists))
	for i, l := range lists {
		titles[i] = l.Title
		assert.Equal(t, i, l.SortOrder)
	}
	assert.Equal(t, []string{
		"Pre-Event: Logistics",
		"Pre-Event: Promotion",
		"On-Day: On-Day",
		"Post-Event: Post-Event",
	}, titles)

	logistics := lists[0]
	require.Len(t, logistics.Tasks, 2)
	assert.Equal(t, "Book venue", logistics.Tasks[0].Title)
	assert.Equal(t, 0, logistics.Tasks[0].SortOrder)
	assert.Equal(t, "Order pizza", logistics.Tasks[1].Title)
	assert.Equal(t, 1, logistics.Tasks[1].SortOrder)

	post := lists[3]
	require.Len(t, post.Tasks, 2)
	assert.Equal(t, "Thank speakers", post.Tasks[0].Title)
	assert.Equal(t, "Upload slides", post.Tasks[1].Title)
	assert.Nil(t, post.Tasks[1].Deadline)
}

func TestExplicitSectionOverridesSign(t *testing.T) {
	lists := ApplyTemplate(date(2026, time.June, 15), []models.TaskBlueprint{
		{Title: "Setup check", RelativeDays: days(1), Section: models.SectionOnDay},
	})
	require.Len(t, lists, 1)
	assert.Equal(t, models.SectionOnDay, lists[0].Section)
	assert.Equal(t, date(2026, time.June, 14), *lists[0].Tasks[0].Deadline)
}

func TestInvalidSectionFallsBackToSign(t *testing.T) {
	assert.Equal(t, models.SectionPreEvent, ResolveSection(models.TaskBlueprint{RelativeDays: days(2), Section: "SOMEDAY"}))
	assert.Equal(t, models.SectionOnDay, ResolveSection(models.TaskBlueprint{RelativeDays: days(0)}))
	assert.Equal(t, models.SectionPostEvent, ResolveSection(models.TaskBlueprint{RelativeDays: days(-3)}))
	assert.Equal(t, models.SectionOnDay, ResolveSection(models.TaskBlueprint{}))
}

func TestPriorityDefaultsToMedium(t *testing.T) {
	lists := ApplyTemplate(date(2026, time.June, 15), []models.TaskBlueprint{
		{Title: "no priority", RelativeDays: days(1)},
		{Title: "bogus priority", RelativeDays: days(1), Priority: "URGENT"},
		{Title: "high", RelativeDays: days(1), Priority: models.PriorityHigh},
	})
	require.Len(t, lists, 1)
	assert.Equal(t, models.PriorityMedium, lists[0].Tasks[0].Priority)
	assert.Equal(t, models.PriorityMedium, lists[0].Tasks[1].Priority)
	assert.Equal(t, models.PriorityHigh, lists[0].Tasks[2].Priority)
}

func TestBlankSubcategoryUsesSectionLabel(t *testing.T) {
	lists := ApplyTemplate(date(2026, time.June, 15), []models.TaskBlueprint{
		{Title: "x", RelativeDays: days(-2), Subcategory: "   "},
	})
	require.Len(t, lists, 1)
	assert.Equal(t, "Post-Event: Post-Event", lists[0].Title)
}

func TestEmptyTemplateYieldsNoChecklists(t *testing.T) {
	assert.Empty(t, ApplyTemplate(date(2026, time.June, 15), nil))
}

func TestIsVenueConfirmationTask(t *testing.T) {
	assert.True(t, IsVenueConfirmationTask("Venue confirmation"))
	assert.True(t, IsVenueConfirmationTask("Confirm venue booking"))
	assert.True(t, IsVenueConfirmationTask("RECONFIRM VENUE access"))
	assert.False(t, IsVenueConfirmationTask("Confirm catering order"))
	assert.False(t, IsVenueConfirmationTask("Book venue"))
}

//go:build integration

package sop

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
	"github.com/meetup-ops/backend/pkg/testutil/containers"
)

type RepositorySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	repo     *Repository
	eventID  uuid.UUID
	userID   uuid.UUID
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.postgres = containers.NewPostgres(s.T())
	s.repo = NewRepository(s.postgres.Pool)
}

func (s *RepositorySuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "sop_tasks", "sop_checklists", "events", "users"))
	s.Require().NoError(s.postgres.Pool.QueryRow(ctx, `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ('lead@example.org', 'x', 'Lena Lead', 'EVENT_LEAD') RETURNING id`).Scan(&s.userID))
	s.Require().NoError(s.postgres.Pool.QueryRow(ctx, `INSERT INTO events (title, date)
		VALUES ('Go Night', $1) RETURNING id`, time.Date(2026, time.June, 15, 18, 0, 0, 0, time.UTC)).Scan(&s.eventID))
}

func (s *RepositorySuite) plan() []PlannedChecklist {
	due := time.Date(2026, time.June, 1, 18, 0, 0, 0, time.UTC)
	return []PlannedChecklist{
		{Title: "Pre-event: Logistics", SortOrder: 0, Tasks: []PlannedTask{
			{Title: "Confirm venue booking", Priority: models.PriorityHigh, SortOrder: 0, Deadline: &due},
			{Title: "Order pizza", Priority: models.PriorityMedium, SortOrder: 1},
		}},
		{Title: "Post-event", SortOrder: 1, Tasks: []PlannedTask{
			{Title: "Send thank-you notes", Priority: models.PriorityLow, SortOrder: 0},
		}},
	}
}

func (s *RepositorySuite) TestReplaceChecklistsRemovesPreviousTasks() {
	ctx := context.Background()
	first, removed, err := s.repo.ReplaceChecklists(ctx, s.eventID, s.plan())
	s.Require().NoError(err)
	s.Zero(removed)
	s.Len(first, 2)

	done := first[0].Tasks[0]
	now := time.Now().UTC()
	done.Status, done.CompletedAt = models.TaskStatusDone, &now
	s.Require().NoError(s.repo.UpdateTask(ctx, &done))

	second, removed, err := s.repo.ReplaceChecklists(ctx, s.eventID, s.plan()[:1])
	s.Require().NoError(err)
	s.Equal(2, removed)

	stored, err := s.repo.ListChecklists(ctx, s.eventID)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(second[0].ID, stored[0].ID)
	for _, task := range stored[0].Tasks {
		s.Equal(models.TaskStatusTodo, task.Status)
		s.Nil(task.CompletedAt)
	}

	_, err = s.repo.GetTask(ctx, s.eventID, done.ID)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *RepositorySuite) TestResetTasksToTodoOnlyTouchesDoneTasks() {
	ctx := context.Background()
	lists, _, err := s.repo.ReplaceChecklists(ctx, s.eventID, s.plan())
	s.Require().NoError(err)
	done, open := lists[0].Tasks[0], lists[0].Tasks[1]
	now := time.Now().UTC()
	done.Status, done.CompletedAt = models.TaskStatusDone, &now
	s.Require().NoError(s.repo.UpdateTask(ctx, &done))

	reset, err := s.repo.ResetTasksToTodo(ctx, []uuid.UUID{done.ID, open.ID})
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{done.ID}, reset)

	got, err := s.repo.GetTask(ctx, s.eventID, done.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusTodo, got.Status)
	s.Nil(got.CompletedAt)
}

func (s *RepositorySuite) TestUnknownAssigneeIsNotFound() {
	ctx := context.Background()
	lists, _, err := s.repo.ReplaceChecklists(ctx, s.eventID, s.plan())
	s.Require().NoError(err)

	missing := uuid.New()
	task := lists[0].Tasks[1]
	task.AssigneeID = &missing
	err = s.repo.UpdateTask(ctx, &task)
	s.ErrorIs(err, apperrors.ErrNotFound)
	s.Contains(err.Error(), "assignee")

	err = s.repo.AddTask(ctx, s.eventID, &models.SOPTask{
		ChecklistID: lists[0].ID,
		Title:       "Print badges",
		Priority:    models.PriorityMedium,
		Status:      models.TaskStatusTodo,
		AssigneeID:  &missing,
	})
	s.ErrorIs(err, apperrors.ErrNotFound)
	s.Contains(err.Error(), "assignee")

	_, err = s.repo.GetAssignee(ctx, missing)
	s.ErrorIs(err, apperrors.ErrNotFound)
	u, err := s.repo.GetAssignee(ctx, s.userID)
	s.Require().NoError(err)
	s.Equal("Lena Lead", u.FullName)
}

// Package digest sends the weekly summary of upcoming meetups to the team.
package digest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
)

const (
	// DefaultBatchSize bounds how many recipients are handled concurrently.
	DefaultBatchSize = 25
	// DefaultLookahead is how far ahead the digest looks for events.
	DefaultLookahead = 7 * 24 * time.Hour

	dateLayout = "Mon 2 Jan 15:04"
)

// EventLister returns scheduled events in a time window; *events.Repository satisfies it.
type EventLister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

// UserLister returns active users; *auth.Repository satisfies it.
type UserLister interface {
	List(ctx context.Context) ([]models.UserPublic, error)
}

// Summary reports what a digest run did.
type Summary struct {
	Events     int `json:"events"`
	Recipients int `json:"recipients"`
	Batches    int `json:"batches"`
}

// Service builds and dispatches the weekly digest.
type Service struct {
	events    EventLister
	users     UserLister
	notifier  notify.Dispatcher
	batchSize int
	lookahead time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a digest service. Non-positive batchSize or lookahead use the defaults.
func NewService(events EventLister, users UserLister, notifier notify.Dispatcher, batchSize int, lookahead time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Service{
		events:    events,
		users:     users,
		notifier:  notifier,
		batchSize: batchSize,
		lookahead: lookahead,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sends one digest email to every active volunteer-or-above user. Recipients are processed
// in fixed-size batches; each batch finishes before the next starts. Nothing is sent when no
// events are coming up.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	from := s.now().UTC()
	upcoming, err := s.events.ListBetween(ctx, from, from.Add(s.lookahead))
	if err != nil {
		return nil, err
	}
	summary := &Summary{Events: len(upcoming)}
	if len(upcoming) == 0 {
		s.logger.Info("weekly digest skipped: no upcoming events")
		return summary, nil
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	var recipients []models.UserPublic
	for _, u := range users {
		if access.HasMinimumRole(u.Role, models.RoleVolunteer) {
			recipients = append(recipients, u)
		}
	}

	listing := formatEvents(upcoming)
	days := strconv.Itoa(int(s.lookahead.Hours() / 24))
	for start := 0; start < len(recipients); start += s.batchSize {
		end := min(start+s.batchSize, len(recipients))
		g, gctx := errgroup.WithContext(ctx)
		for _, u := range recipients[start:end] {
			u := u // per-iteration copy (go directive is 1.21)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.notifier.Dispatch(gctx, notify.Notification{
					Channel:   models.ChannelEmail,
					Kind:      models.NotificationWeeklyDigest,
					Recipient: u.Email,
					Data: map[string]string{
						"name":   u.FullName,
						"days":   days,
						"events": listing,
					},
				})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}
		summary.Batches++
		summary.Recipients += end - start
	}
	s.logger.Info("weekly digest dispatched",
		zap.Int("events", summary.Events),
		zap.Int("recipients", summary.Recipients),
		zap.Int("batches", summary.Batches),
	)
	return summary, nil
}

func formatEvents(list []models.Event) string {
	var b strings.Builder
	for _, e := range list {
		b.WriteString("- ")
		b.WriteString(e.Title)
		b.WriteString(" (")
		b.WriteString(e.Date.Format(dateLayout))
		if e.VenueName != "" {
			b.WriteString(", ")
			b.WriteString(e.VenueName)
		}
		b.WriteString(")\n")
	}
	return b.String()
}

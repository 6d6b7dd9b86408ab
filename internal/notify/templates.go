package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/meetup-ops/backend/internal/models"
)

type message struct {
	subject *template.Template
	body    *template.Template
}

func mustMessage(name, subject, body string) message {
	return message{
		subject: template.Must(template.New(name + "_subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(name + "_body").Option("missingkey=zero").Parse(body)),
	}
}

var messages = map[string]message{
	models.NotificationEventScheduled: mustMessage("event_scheduled",
		`{{.title}} is scheduled for {{.date}}`,
		`Hi {{.name}},

{{.title}} is scheduled for {{.date}}{{if .venue}} at {{.venue}}{{end}}.
Details: {{.link}}
`),
	models.NotificationEventRescheduled: mustMessage("event_rescheduled",
		`{{.title}} moved to {{.date}}`,
		`Hi {{.name}},

{{.title}} has moved from {{.previous_date}} to {{.date}}.
Task deadlines may have changed. Details: {{.link}}
`),
	models.NotificationVolunteerAssigned: mustMessage("volunteer_assigned",
		`You're volunteering at {{.title}}`,
		`Hi {{.name}},

You have been assigned to {{.title}} on {{.date}}{{if .role}} as {{.role}}{{end}}.
Details: {{.link}}
`),
	models.NotificationChecklistsApplied: mustMessage("checklists_applied",
		`Checklists ready for {{.title}}`,
		`Template "{{.template}}" was applied to {{.title}}: {{.checklists}} checklists, {{.tasks}} tasks.`),
	models.NotificationVenueConfirmReset: mustMessage("venue_confirmation_reset",
		`Venue needs confirming again for {{.title}}`,
		`{{.venue}} is no longer the confirmed venue for {{.title}}. {{.tasks}} venue confirmation tasks were reopened.`),
	models.NotificationTaskAssigned: mustMessage("task_assigned",
		`New task{{if .title}} for {{.title}}{{end}}: {{.task}}`,
		`Hi {{.name}},

You have been assigned "{{.task}}"{{if .title}} for {{.title}}{{end}}.{{if .deadline}}
Due: {{.deadline}}{{end}}
`),
	models.NotificationWeeklyDigest: mustMessage("weekly_digest",
		`Meetups this week`,
		`Hi {{.name}},

Upcoming events in the next {{.days}} days:
{{.events}}
`),
}

// Render produces the subject and body for a notification.
func Render(n Notification) (subject, body string, err error) {
	m, ok := messages[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	var s, b bytes.Buffer
	if err := m.subject.Execute(&s, n.Data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := m.body.Execute(&b, n.Data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return s.String(), b.String(), nil
}

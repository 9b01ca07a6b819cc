// Package alert reports occurrences that aged out of the drift window
// without being executed.
package alert

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
	"github.com/resend/resend-go/v2"
)

type Alerter interface {
	Missed(ctx context.Context, occ *domain.DueOccurrence) error
}

// LogAlerter only writes a warning. Used when no recipient is configured.
type LogAlerter struct {
	logger *slog.Logger
}

func (a *LogAlerter) Missed(ctx context.Context, occ *domain.DueOccurrence) error {
	a.logger.WarnContext(ctx, "occurrence missed its drift window",
		"resource_id", occ.ResourceID,
		"action", occ.Action,
		"bucket", occ.TimeBucket,
	)
	return nil
}

// ResendAlerter emails each missed occurrence via the Resend API.
type ResendAlerter struct {
	client *resend.Client
	from   string
	to     string
}

func (a *ResendAlerter) Missed(ctx context.Context, occ *domain.DueOccurrence) error {
	params := &resend.SendEmailRequest{
		From:    a.from,
		To:      []string{a.to},
		Subject: fmt.Sprintf("Missed %s for %s", occ.Action, occ.ResourceID),
		Html:    missedBody(occ),
	}
	if _, err := a.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

func missedBody(occ *domain.DueOccurrence) string {
	return fmt.Sprintf(
		"<p>The scheduled <b>%s</b> of <code>%s</code> due at %s was not executed "+
			"within the drift window and has been dropped.</p>",
		html.EscapeString(string(occ.Action)),
		html.EscapeString(occ.ResourceID),
		html.EscapeString(dueTime(occ.TimeBucket)),
	)
}

// dueTime renders a bucket for people; a malformed bucket is shown as is.
func dueTime(bucket string) string {
	t, err := compiler.ParseBucket(bucket)
	if err != nil {
		return bucket
	}
	return t.Format("2006-01-02 15:04 UTC")
}

// New returns a LogAlerter for ENV=local or when no recipient is set,
// ResendAlerter otherwise.
func New(env, apiKey, from, to string, logger *slog.Logger) Alerter {
	if env == "local" || to == "" {
		return &LogAlerter{logger: logger.With("component", "alert")}
	}
	return &ResendAlerter{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}

// Package errtrack reports failures to Sentry. A nil *Tracker is valid and
// drops everything, which is what runs when no DSN is configured.
package errtrack

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

type Tracker struct {
	hub *sentry.Hub
}

// New initialises the Sentry client. It returns nil, nil for an empty DSN.
func New(dsn, environment string) (*Tracker, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *sentry.Client) *Tracker {
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}
}

// CaptureError sends err with tags. It returns the event id, or "" when
// nothing was sent.
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) string {
	if t == nil || t.hub == nil || err == nil {
		return ""
	}
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	id := hub.CaptureException(err)
	if id == nil {
		return ""
	}
	return string(*id)
}

// AddBreadcrumb records a breadcrumb on the shared scope.
func (t *Tracker) AddBreadcrumb(category, message string, data map[string]any) {
	if t == nil || t.hub == nil {
		return
	}
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
		Data:     data,
	}, nil)
}

// ObserveStage records a pipeline stage as a breadcrumb, so a later captured
// failure carries the stages that ran before it.
func (t *Tracker) ObserveStage(stage string, took time.Duration, err error) {
	data := map[string]any{"took_ms": took.Milliseconds()}
	message := stage + " ok"
	if err != nil {
		data["error"] = err.Error()
		message = stage + " failed"
	}
	t.AddBreadcrumb("pipeline", message, data)
}

func (t *Tracker) ObserveBriefing(topic string, cached bool) {
	t.AddBreadcrumb("pipeline", "briefing ready", map[string]any{"topic": topic, "cached": cached})
}

// Flush waits up to timeout for queued events.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if t == nil || t.hub == nil {
		return true
	}
	return t.hub.Flush(timeout)
}

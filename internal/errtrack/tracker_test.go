package errtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
)

type recordingTransport struct {
	events []*sentry.Event
}

func (r *recordingTransport) Flush(timeout time.Duration) bool { return true }
func (r *recordingTransport) FlushWithContext(ctx context.Context) bool {
	return true
}
func (r *recordingTransport) Configure(options sentry.ClientOptions) {}
func (r *recordingTransport) SendEvent(event *sentry.Event) {
	r.events = append(r.events, event)
}
func (r *recordingTransport) Close() {}

func TestNewWithoutDSNIsNoop(t *testing.T) {
	tr, err := New("", "test")
	if err != nil || tr != nil {
		t.Fatalf("tracker=%v err=%v", tr, err)
	}
	if id := tr.CaptureError(context.Background(), errors.New("x"), nil); id != "" {
		t.Fatalf("nil tracker captured %q", id)
	}
	tr.AddBreadcrumb("pipeline", "noop", nil)
	if !tr.Flush(0) {
		t.Fatalf("nil tracker flush should succeed")
	}
}

func TestCaptureErrorSetsTags(t *testing.T) {
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@example.com/1",
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	tr := NewWithClient(client)

	id := tr.CaptureError(context.Background(), errors.New("stage failed"), map[string]string{"topic": "crypto"})
	if id == "" {
		t.Fatalf("expected event id")
	}
	if len(transport.events) != 1 {
		t.Fatalf("events=%d want=1", len(transport.events))
	}
	if got := transport.events[0].Tags["topic"]; got != "crypto" {
		t.Fatalf("topic tag=%q want=crypto", got)
	}
}

func TestStageBreadcrumbsReachCapturedEvent(t *testing.T) {
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@example.com/1",
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	tr := NewWithClient(client)

	tr.ObserveStage("fetch_market", 120*time.Millisecond, nil)
	tr.ObserveStage("synthesize_audio", time.Second, errors.New("tts down"))
	tr.CaptureError(context.Background(), errors.New("tts down"), nil)

	if len(transport.events) != 1 {
		t.Fatalf("events=%d want=1", len(transport.events))
	}
	crumbs := transport.events[0].Breadcrumbs
	if len(crumbs) != 2 {
		t.Fatalf("breadcrumbs=%d want=2", len(crumbs))
	}
	if crumbs[0].Message != "fetch_market ok" || crumbs[1].Message != "synthesize_audio failed" {
		t.Fatalf("breadcrumbs=%q,%q", crumbs[0].Message, crumbs[1].Message)
	}
	if crumbs[1].Data["error"] != "tts down" {
		t.Fatalf("error data=%v", crumbs[1].Data["error"])
	}
}

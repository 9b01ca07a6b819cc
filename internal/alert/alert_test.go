package alert

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

func TestNew_LocalUsesLogAlerter(t *testing.T) {
	a := New("local", "re_key", "from@example.com", "ops@example.com", slog.Default())
	if _, ok := a.(*LogAlerter); !ok {
		t.Fatalf("got %T, want *LogAlerter", a)
	}
}

func TestNew_NoRecipientUsesLogAlerter(t *testing.T) {
	a := New("production", "", "", "", slog.Default())
	if _, ok := a.(*LogAlerter); !ok {
		t.Fatalf("got %T, want *LogAlerter", a)
	}
}

func TestNew_ProductionUsesResend(t *testing.T) {
	a := New("production", "re_key", "from@example.com", "ops@example.com", slog.Default())
	if _, ok := a.(*ResendAlerter); !ok {
		t.Fatalf("got %T, want *ResendAlerter", a)
	}
}

func TestLogAlerter_WritesWarning(t *testing.T) {
	var buf bytes.Buffer
	a := &LogAlerter{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := a.Missed(context.Background(), &domain.DueOccurrence{
		TimeBucket: "202610190800", Action: domain.ActionDealloc, ResourceID: "vm-1",
	})
	if err != nil {
		t.Fatalf("missed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "vm-1") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestMissedBody_EscapesResourceID(t *testing.T) {
	body := missedBody(&domain.DueOccurrence{ResourceID: "<vm>", Action: domain.ActionAlloc})
	if strings.Contains(body, "<vm>") {
		t.Fatalf("resource id not escaped: %s", body)
	}
}

func TestMissedBody_FormatsDueTime(t *testing.T) {
	body := missedBody(&domain.DueOccurrence{TimeBucket: "202610190800", ResourceID: "vm-1", Action: domain.ActionAlloc})
	if !strings.Contains(body, "2026-10-19 08:00 UTC") {
		t.Fatalf("due time not rendered: %s", body)
	}

	body = missedBody(&domain.DueOccurrence{TimeBucket: "garbage", ResourceID: "vm-1", Action: domain.ActionAlloc})
	if !strings.Contains(body, "garbage") {
		t.Fatalf("malformed bucket dropped: %s", body)
	}
}

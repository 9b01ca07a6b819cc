package httptransport_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/scheduler"
	httptransport "github.com/ErlanBelekov/vm-power-scheduler/internal/transport/http"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const triggerKey = "router-test-secret-that-is-32-chars"

func init() {
	gin.SetMode(gin.TestMode)
}

type nopIngester struct{}

func (nopIngester) ResourceChanged(context.Context, string) (usecase.IngestResult, error) {
	return usecase.IngestResult{Ignored: true}, nil
}

type nopExtender struct{}

func (nopExtender) Run(context.Context, time.Time) (scheduler.ExtendReport, error) {
	return scheduler.ExtendReport{}, nil
}

type nopReconciler struct{}

func (nopReconciler) Run(context.Context, time.Time) scheduler.ReconcileReport {
	return scheduler.ReconcileReport{}
}

func newRouter(key []byte) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return httptransport.NewRouter(logger,
		handler.NewEventHandler(nopIngester{}, logger),
		handler.NewTriggerHandler(nopExtender{}, nopReconciler{}, logger),
		key,
	)
}

func signed(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(triggerKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestRouter_TriggersNotMountedWithoutKey(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/triggers/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t))
	newRouter(nil).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRouter_TriggersRequireToken(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter([]byte(triggerKey)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/triggers/extend", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRouter_TriggerWithToken(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/triggers/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t))
	newRouter([]byte(triggerKey)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_EventsAndHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	newRouter(nil).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want propagated id", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

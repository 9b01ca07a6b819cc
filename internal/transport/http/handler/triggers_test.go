package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
)

type fakeExtender struct {
	report scheduler.ExtendReport
	err    error
}

func (f *fakeExtender) Run(_ context.Context, _ time.Time) (scheduler.ExtendReport, error) {
	return f.report, f.err
}

type fakeReconciler struct {
	report scheduler.ReconcileReport
	calls  int
}

func (f *fakeReconciler) Run(_ context.Context, _ time.Time) scheduler.ReconcileReport {
	f.calls++
	return f.report
}

func newTriggerEngine(ext *fakeExtender, rec *fakeReconciler) *gin.Engine {
	h := handler.NewTriggerHandler(ext, rec, quietLogger())
	r := gin.New()
	r.POST("/triggers/extend", h.Extend)
	r.POST("/triggers/reconcile", h.Reconcile)
	return r
}

func TestExtend_ReturnsReport(t *testing.T) {
	ext := &fakeExtender{report: scheduler.ExtendReport{Schedules: 3, Written: 42, Pruned: 2}}
	w := httptest.NewRecorder()
	newTriggerEngine(ext, &fakeReconciler{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/triggers/extend", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got scheduler.ExtendReport
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != ext.report {
		t.Errorf("report = %+v, want %+v", got, ext.report)
	}
}

func TestExtend_AbortedPass_Returns500(t *testing.T) {
	ext := &fakeExtender{err: errors.New("list schedules: connection refused")}
	w := httptest.NewRecorder()
	newTriggerEngine(ext, &fakeReconciler{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/triggers/extend", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestReconcile_ReturnsReport(t *testing.T) {
	rec := &fakeReconciler{report: scheduler.ReconcileReport{Scanned: 4, Executed: 3, Stale: 1}}
	w := httptest.NewRecorder()
	newTriggerEngine(&fakeExtender{}, rec).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/triggers/reconcile", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if rec.calls != 1 {
		t.Errorf("reconcile calls = %d, want 1", rec.calls)
	}
	var got scheduler.ReconcileReport
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != rec.report {
		t.Errorf("report = %+v, want %+v", got, rec.report)
	}
}

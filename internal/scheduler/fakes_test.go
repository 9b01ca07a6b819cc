package scheduler_test

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

// ---- fakes ----

type memSchedules struct {
	mu      sync.Mutex
	recs    map[string]*domain.ScheduleRecord
	getErr  error
	listErr error
}

func newMemSchedules(recs ...*domain.ScheduleRecord) *memSchedules {
	m := &memSchedules{recs: make(map[string]*domain.ScheduleRecord)}
	for _, r := range recs {
		m.recs[r.ResourceID] = r
	}
	return m
}

func (m *memSchedules) Get(_ context.Context, id string) (*domain.ScheduleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.recs[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memSchedules) Upsert(_ context.Context, rec *domain.ScheduleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.recs[rec.ResourceID] = &cp
	return nil
}

func (m *memSchedules) List(_ context.Context) ([]*domain.ScheduleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*domain.ScheduleRecord, 0, len(m.recs))
	for _, r := range m.recs {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out, nil
}

type memDue struct {
	mu        sync.Mutex
	rows      map[domain.OccurrenceKey]domain.DueOccurrence
	upserts   int
	upsertErr func(occ *domain.DueOccurrence) error
	scanErr   map[string]error
	sweepErr  error
	deleteErr error
}

func newMemDue(occs ...domain.DueOccurrence) *memDue {
	m := &memDue{rows: make(map[domain.OccurrenceKey]domain.DueOccurrence)}
	for _, o := range occs {
		m.rows[o.Key()] = o
	}
	return m
}

func (m *memDue) Upsert(_ context.Context, occ *domain.DueOccurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		if err := m.upsertErr(occ); err != nil {
			return err
		}
	}
	m.upserts++
	m.rows[occ.Key()] = *occ
	return nil
}

func (m *memDue) Delete(_ context.Context, key domain.OccurrenceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.rows, key)
	return nil
}

func (m *memDue) ScanBucket(_ context.Context, bucket string) ([]*domain.DueOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.scanErr[bucket]; err != nil {
		return nil, err
	}
	var out []*domain.DueOccurrence
	for _, o := range m.rows {
		if o.TimeBucket == bucket {
			cp := o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	return out, nil
}

func (m *memDue) ScanBefore(_ context.Context, bucket string) ([]*domain.DueOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sweepErr != nil {
		return nil, m.sweepErr
	}
	var out []*domain.DueOccurrence
	for _, o := range m.rows {
		if o.TimeBucket < bucket {
			cp := o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeBucket != out[j].TimeBucket {
			return out[i].TimeBucket < out[j].TimeBucket
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (m *memDue) DeleteBefore(_ context.Context, bucket string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.rows {
		if k.TimeBucket < bucket {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memDue) has(o domain.DueOccurrence) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[o.Key()]
	return ok
}

func (m *memDue) snapshot() map[domain.OccurrenceKey]domain.DueOccurrence {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[domain.OccurrenceKey]domain.DueOccurrence, len(m.rows))
	for k, v := range m.rows {
		cp[k] = v
	}
	return cp
}

type fakeActuator struct {
	mu       sync.Mutex
	on, off  []string
	powerErr error
}

func (a *fakeActuator) PowerOn(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.powerErr != nil {
		return a.powerErr
	}
	a.on = append(a.on, id)
	return nil
}

func (a *fakeActuator) PowerOff(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.powerErr != nil {
		return a.powerErr
	}
	a.off = append(a.off, id)
	return nil
}

func (a *fakeActuator) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.on) + len(a.off)
}

type fakeAlerter struct {
	mu     sync.Mutex
	missed []domain.DueOccurrence
	err    error
}

func (a *fakeAlerter) Missed(_ context.Context, occ *domain.DueOccurrence) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.missed = append(a.missed, *occ)
	return a.err
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.missed)
}

// ---- helpers ----

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func scheduleFor(id, start, stop string) *domain.ScheduleRecord {
	rec := &domain.ScheduleRecord{ResourceID: id, Enabled: true, Start: start, Stop: stop, TimeZone: "UTC"}
	rec.ScheduleHash = compiler.Hash(rec)
	return rec
}

package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrNotManagedResource = errors.New("resource is not a managed virtual machine")
	ErrInvalidResourceID  = errors.New("invalid resource id")
)

// ScheduleRecord is the current power schedule of one managed resource.
// Start and Stop are normalized "HH:mm" strings, or "" when absent.
type ScheduleRecord struct {
	ResourceID   string
	Enabled      bool
	Start        string
	Stop         string
	WeekdaysOnly bool
	TimeZone     string
	ScheduleHash string
	UpdatedAt    time.Time
}

// Actionable reports whether the record can produce occurrences.
func (r *ScheduleRecord) Actionable() bool {
	return r.Enabled && (r.Start != "" || r.Stop != "")
}

type Action string

const (
	ActionAlloc   Action = "alloc"
	ActionDealloc Action = "dealloc"
)

func (a Action) Valid() bool {
	return a == ActionAlloc || a == ActionDealloc
}

// DueOccurrence is one pending power transition, keyed by (TimeBucket, Action, ResourceID).
type DueOccurrence struct {
	TimeBucket   string
	Action       Action
	ResourceID   string
	ScheduleHash string
}

type OccurrenceKey struct {
	TimeBucket string
	Action     Action
	ResourceID string
}

func (o *DueOccurrence) Key() OccurrenceKey {
	return OccurrenceKey{TimeBucket: o.TimeBucket, Action: o.Action, ResourceID: o.ResourceID}
}

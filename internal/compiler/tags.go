package compiler

import (
	"strings"
	"time"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

// DefaultTagPrefix is used when TagOptions.Prefix is empty.
const DefaultTagPrefix = "Auto"

// TagOptions controls how resource tags map onto a schedule.
type TagOptions struct {
	Prefix          string // e.g. "Auto" reads AutoStart, AutoStop, ...
	DefaultTimeZone string
}

// FromTags compiles a resource's tags into a hashed schedule record. It never
// fails: unknown or malformed values fall back to their defaults.
//
//	<prefix>Enabled      default true, only "false" disables
//	<prefix>Start        HH:mm power-on time
//	<prefix>Stop         HH:mm power-off time
//	<prefix>WeekdaysOnly default false, only "true" enables
//	<prefix>TimeZone     IANA zone, defaults to opts.DefaultTimeZone
func FromTags(resourceID string, tags map[string]string, opts TagOptions) *domain.ScheduleRecord {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultTagPrefix
	}

	// Azure tag names are case-insensitive.
	folded := make(map[string]string, len(tags))
	for k, v := range tags {
		folded[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	lookup := func(name string) (string, bool) {
		v, ok := folded[strings.ToLower(prefix+name)]
		return v, ok
	}

	rec := &domain.ScheduleRecord{
		ResourceID: resourceID,
		Enabled:    true,
		TimeZone:   opts.DefaultTimeZone,
	}
	if v, ok := lookup("Enabled"); ok {
		rec.Enabled = !strings.EqualFold(v, "false")
	}
	if v, ok := lookup("Start"); ok {
		rec.Start = NormalizeTime(v)
	}
	if v, ok := lookup("Stop"); ok {
		rec.Stop = NormalizeTime(v)
	}
	if v, ok := lookup("WeekdaysOnly"); ok {
		rec.WeekdaysOnly = strings.EqualFold(v, "true")
	}
	if v, ok := lookup("TimeZone"); ok && validZone(v) {
		rec.TimeZone = v
	}

	rec.ScheduleHash = Hash(rec)
	return rec
}

// Disabled returns the record written for a resource that no longer exists.
func Disabled(resourceID, timeZone string) *domain.ScheduleRecord {
	rec := &domain.ScheduleRecord{ResourceID: resourceID, TimeZone: timeZone}
	rec.ScheduleHash = Hash(rec)
	return rec
}

func validZone(name string) bool {
	if name == "" || name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Package compiler turns tag-derived schedule settings into canonical
// schedule records and expands them into concrete due occurrences.
package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/domain"
)

// BucketLayout formats a UTC minute so that lexicographic order matches
// chronological order.
const BucketLayout = "200601021504"

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

type clock struct {
	hour, minute int
}

// NormalizeTime returns raw as a canonical "HH:mm" string, or "" when raw is
// empty or malformed. Malformed input means "no action at that edge".
func NormalizeTime(raw string) string {
	m := timeOfDay.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	return m[1] + ":" + m[2]
}

func parseClock(s string) (clock, bool) {
	m := timeOfDay.FindStringSubmatch(s)
	if m == nil {
		return clock{}, false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return clock{hour: h, minute: mm}, true
}

// Hash digests the five semantic fields of a record in a fixed order.
// UpdatedAt, ResourceID and any previous hash are not part of the digest.
func Hash(rec *domain.ScheduleRecord) string {
	raw := strings.Join([]string{
		strconv.FormatBool(rec.Enabled),
		rec.Start,
		rec.Stop,
		strconv.FormatBool(rec.WeekdaysOnly),
		rec.TimeZone,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Expand materializes the occurrences of rec for day offsets 0..horizonDays-1,
// starting at the calendar day of now in the record's time zone. Output is
// ordered by day with alloc before dealloc, and is the same for the same inputs.
func Expand(resourceID string, rec *domain.ScheduleRecord, horizonDays int, now time.Time) ([]domain.DueOccurrence, error) {
	loc, err := time.LoadLocation(rec.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", rec.TimeZone, err)
	}

	start, hasStart := parseClock(rec.Start)
	stop, hasStop := parseClock(rec.Stop)
	if horizonDays <= 0 || (!hasStart && !hasStop) {
		return nil, nil
	}

	y, m, d := now.In(loc).Date()
	out := make([]domain.DueOccurrence, 0, 2*horizonDays)

	for offset := 0; offset < horizonDays; offset++ {
		day := time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
		if rec.WeekdaysOnly && isWeekend(day.Weekday()) {
			continue
		}
		if hasStart {
			out = append(out, domain.DueOccurrence{
				TimeBucket:   Bucket(at(day, start)),
				Action:       domain.ActionAlloc,
				ResourceID:   resourceID,
				ScheduleHash: rec.ScheduleHash,
			})
		}
		if hasStop {
			out = append(out, domain.DueOccurrence{
				TimeBucket:   Bucket(at(day, stop)),
				Action:       domain.ActionDealloc,
				ResourceID:   resourceID,
				ScheduleHash: rec.ScheduleHash,
			})
		}
	}
	return out, nil
}

// at converts a local wall-clock time on day to UTC. A wall time that falls
// in a spring-forward gap keeps the offset in force before the transition, so
// 02:30 on a 02:00 to 03:00 jump fires at 03:30.
func at(day time.Time, c clock) time.Time {
	y, m, d := day.Date()
	loc := day.Location()
	t := time.Date(y, m, d, c.hour, c.minute, 0, 0, loc)
	if t.Hour() == c.hour && t.Minute() == c.minute {
		return t.UTC()
	}
	// time.Date picks either side of the gap depending on the zone.
	_, before := time.Date(y, m, d, 0, 0, 0, 0, loc).Add(-time.Hour).Zone()
	return time.Date(y, m, d, c.hour, c.minute, 0, 0, time.UTC).Add(-time.Duration(before) * time.Second)
}

func isWeekend(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}

// Bucket floors t to the UTC minute and formats it as a Due Index bucket.
func Bucket(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(BucketLayout)
}

// ParseBucket is the inverse of Bucket: it reads a Due Index bucket back as a
// UTC minute.
func ParseBucket(s string) (time.Time, error) {
	t, err := time.ParseInLocation(BucketLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bucket %q: %w", s, err)
	}
	return t, nil
}

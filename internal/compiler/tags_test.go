package compiler_test

import (
	"testing"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/compiler"
)

var londonOpts = compiler.TagOptions{Prefix: "Auto", DefaultTimeZone: "Europe/London"}

func TestFromTags_Defaults(t *testing.T) {
	rec := compiler.FromTags(vmID, map[string]string{"AutoStart": "08:00"}, londonOpts)

	if !rec.Enabled {
		t.Error("Enabled = false, want true by default")
	}
	if rec.Start != "08:00" || rec.Stop != "" {
		t.Errorf("start/stop = %q/%q, want 08:00/\"\"", rec.Start, rec.Stop)
	}
	if rec.WeekdaysOnly {
		t.Error("WeekdaysOnly = true, want false by default")
	}
	if rec.TimeZone != "Europe/London" {
		t.Errorf("TimeZone = %q, want Europe/London", rec.TimeZone)
	}
	if rec.ScheduleHash != compiler.Hash(rec) {
		t.Error("record hash does not match its fields")
	}
}

func TestFromTags_CaseInsensitiveNamesAndValues(t *testing.T) {
	rec := compiler.FromTags(vmID, map[string]string{
		"autoenabled":      "FALSE",
		"AUTOSTOP":         " 19:45 ",
		"AutoWeekdaysOnly": "True",
	}, londonOpts)

	if rec.Enabled {
		t.Error("Enabled = true, want false")
	}
	if rec.Stop != "19:45" {
		t.Errorf("Stop = %q, want 19:45", rec.Stop)
	}
	if !rec.WeekdaysOnly {
		t.Error("WeekdaysOnly = false, want true")
	}
}

func TestFromTags_MalformedValuesDegrade(t *testing.T) {
	rec := compiler.FromTags(vmID, map[string]string{
		"AutoEnabled":      "nope",
		"AutoStart":        "25:00",
		"AutoStop":         "6pm",
		"AutoWeekdaysOnly": "yes",
		"AutoTimeZone":     "Nowhere/Special",
	}, londonOpts)

	if !rec.Enabled {
		t.Error("only \"false\" should disable")
	}
	if rec.Start != "" || rec.Stop != "" {
		t.Errorf("start/stop = %q/%q, want both absent", rec.Start, rec.Stop)
	}
	if rec.WeekdaysOnly {
		t.Error("only \"true\" should enable weekdays-only")
	}
	if rec.TimeZone != "Europe/London" {
		t.Errorf("TimeZone = %q, want default", rec.TimeZone)
	}
	if rec.Actionable() {
		t.Error("record without times should not be actionable")
	}
}

func TestFromTags_TimeZoneOverride(t *testing.T) {
	rec := compiler.FromTags(vmID, map[string]string{
		"AutoStart":    "07:00",
		"AutoTimeZone": "America/Chicago",
	}, londonOpts)
	if rec.TimeZone != "America/Chicago" {
		t.Fatalf("TimeZone = %q, want America/Chicago", rec.TimeZone)
	}
}

func TestFromTags_CustomPrefix(t *testing.T) {
	opts := compiler.TagOptions{Prefix: "Power", DefaultTimeZone: "UTC"}
	rec := compiler.FromTags(vmID, map[string]string{"PowerStart": "06:00", "AutoStart": "09:00"}, opts)
	if rec.Start != "06:00" {
		t.Fatalf("Start = %q, want 06:00", rec.Start)
	}
}

func TestFromTags_SameTagsSameHash(t *testing.T) {
	tags := map[string]string{"AutoStart": "08:00", "AutoStop": "18:00", "Owner": "team-a"}
	a := compiler.FromTags(vmID, tags, londonOpts)

	tags["Owner"] = "team-b"
	b := compiler.FromTags(vmID, tags, londonOpts)

	if a.ScheduleHash != b.ScheduleHash {
		t.Fatal("unrelated tag change altered the schedule hash")
	}
}

func TestDisabled(t *testing.T) {
	rec := compiler.Disabled(vmID, "UTC")
	if rec.Enabled || rec.Actionable() {
		t.Fatal("Disabled record must not be actionable")
	}
	if rec.ScheduleHash == "" {
		t.Fatal("Disabled record must carry a hash")
	}
}

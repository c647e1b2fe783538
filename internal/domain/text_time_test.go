package domain

import (
	"testing"
	"time"
)

func TestTextTimeRoundTrip(t *testing.T) {
	original := time.Date(2025, 3, 9, 18, 4, 5, 987654321, time.FixedZone("CET", 3600))

	value, err := NewTextTime(original).Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if value != "2025-03-09 17:04:05" {
		t.Fatalf("persisted value = %q", value)
	}

	var scanned TextTime
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !scanned.Equal(original.UTC().Truncate(time.Second)) {
		t.Fatalf("round trip lost precision: %v", scanned.Time)
	}
}

func TestTextTimeScanSources(t *testing.T) {
	var tt TextTime

	if err := tt.Scan([]byte("2025-01-02 03:04:05")); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if tt.Hour() != 3 {
		t.Fatalf("scanned hour = %d", tt.Hour())
	}

	if err := tt.Scan(time.Date(2025, 6, 1, 12, 0, 0, 500, time.UTC)); err != nil {
		t.Fatalf("Scan time.Time: %v", err)
	}
	if tt.Nanosecond() != 0 {
		t.Fatal("native time not truncated to seconds")
	}

	if err := tt.Scan(nil); err != nil {
		t.Fatalf("Scan nil: %v", err)
	}
	if !tt.IsZero() {
		t.Fatal("nil source must reset the value")
	}

	if err := tt.Scan(42); err == nil {
		t.Fatal("expected an error for an int source")
	}
}

// String comparison of formatted values must agree with time comparison;
// the store's release-time queries depend on it.
func TestTextTimeOrderingMatchesStringOrdering(t *testing.T) {
	base := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	later := base.Add(time.Second) // rolls every field over

	if FormatTextTime(base) >= FormatTextTime(later) {
		t.Fatalf("formatted ordering broken: %q >= %q", FormatTextTime(base), FormatTextTime(later))
	}
}

func TestBlocklistEntryActive(t *testing.T) {
	now := time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC)
	entry := BlocklistEntry{ReleaseTime: NewTextTime(now)}

	// Release exactly at now means the lock has expired.
	if entry.Active(now) {
		t.Fatal("entry with release_time == now must be inactive")
	}

	entry.ReleaseTime = NewTextTime(now.Add(time.Second))
	if !entry.Active(now) {
		t.Fatal("entry releasing in the future must be active")
	}
}

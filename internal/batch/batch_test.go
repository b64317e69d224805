package batch

import (
	"testing"
	"time"

	"witnessgate/internal/store"
)

func TestGroupByDevicePreservesReceiveOrder(t *testing.T) {
	records := []store.SubmissionRecord{
		{ID: 1, DeviceID: "d1", StepCount: 50},
		{ID: 2, DeviceID: "d2", StepCount: 200},
		{ID: 3, DeviceID: "d1", StepCount: 75},
		{ID: 4, DeviceID: "d1", StepCount: 25},
	}

	grouped := groupByDevice(records)

	d1 := grouped["d1"]
	if len(d1) != 3 {
		t.Fatalf("len(d1) = %d, want 3", len(d1))
	}
	if d1[0].ID != 1 || d1[1].ID != 3 || d1[2].ID != 4 {
		t.Fatalf("d1 order not preserved: %+v", d1)
	}

	d2 := grouped["d2"]
	if len(d2) != 1 || d2[0].ID != 2 {
		t.Fatalf("unexpected d2 group: %+v", d2)
	}
}

func TestNextRunSameDayWhenBeforeScheduleHour(t *testing.T) {
	now := time.Date(2026, 8, 3, 1, 0, 0, 0, time.UTC)
	next := nextRun(now, 2)
	want := time.Date(2026, 8, 3, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("nextRun = %v, want %v", next, want)
	}
}

func TestNextRunRollsToTomorrowWhenPastScheduleHour(t *testing.T) {
	now := time.Date(2026, 8, 3, 3, 0, 0, 0, time.UTC)
	next := nextRun(now, 2)
	want := time.Date(2026, 8, 4, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("nextRun = %v, want %v", next, want)
	}
}

func TestNextRunRollsToTomorrowWhenExactlyAtScheduleHour(t *testing.T) {
	now := time.Date(2026, 8, 3, 2, 0, 0, 0, time.UTC)
	next := nextRun(now, 2)
	want := time.Date(2026, 8, 4, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("nextRun = %v, want %v", next, want)
	}
}

package calendar_test

import (
	"testing"
	"time"

	"github.com/meenmo/autocallpricer/calendar"
)

func TestIsBusinessDay_Weekend(t *testing.T) {
	sat := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if calendar.IsBusinessDay(calendar.NONE, sat) {
		t.Fatalf("Saturday should not be a business day")
	}
}

func TestIsBusinessDay_Holiday(t *testing.T) {
	newYear := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if calendar.IsBusinessDay(calendar.FD, newYear) {
		t.Fatalf("2026-01-01 should be a FD holiday")
	}
	if !calendar.IsBusinessDay(calendar.NONE, newYear) {
		t.Fatalf("NONE calendar should not observe FD holidays")
	}
}

func TestAdjust_ModifiedFollowing_RollsBackAcrossMonthEnd(t *testing.T) {
	// 2026-05-30 is a Saturday; the following Monday (2026-06-01) would spill
	// into the next month, so Modified Following rolls backward instead.
	end := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	got := calendar.Adjust(calendar.NONE, end)
	if got.Month() != time.May {
		t.Fatalf("Adjust rolled into a new month: got %v", got)
	}
	if !calendar.IsBusinessDay(calendar.NONE, got) {
		t.Fatalf("Adjust returned a non-business day: %v", got)
	}
}

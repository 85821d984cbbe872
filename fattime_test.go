package netmount

import (
	"testing"
	"time"
)

func TestPackUnpackTimeRoundTrip(t *testing.T) {
	in := time.Date(2023, time.November, 5, 14, 37, 22, 0, time.Local)
	packed := PackTime(in)
	out := UnpackTime(packed)

	if out.Year() != in.Year() || out.Month() != in.Month() || out.Day() != in.Day() {
		t.Fatalf("date mismatch: got %v, want %v", out, in)
	}
	if out.Hour() != in.Hour() || out.Minute() != in.Minute() {
		t.Fatalf("time mismatch: got %v, want %v", out, in)
	}
	// DOS time has 2-second resolution.
	if out.Second() != (in.Second()/2)*2 {
		t.Fatalf("second mismatch: got %d, want %d", out.Second(), (in.Second()/2)*2)
	}
}

func TestPackTimeSplit(t *testing.T) {
	in := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.Local)
	full := PackTime(in)
	timePart, datePart := PackTimeSplit(in)

	if uint32(timePart)|uint32(datePart)<<16 != full {
		t.Fatalf("split halves don't recombine to PackTime result")
	}
}

func TestPackTimeEpochYear(t *testing.T) {
	// 1980-01-01 is the DOS epoch: year field should be 0.
	in := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local)
	packed := PackTime(in)
	year := (packed >> 25) & 0x7F
	if year != 0 {
		t.Fatalf("expected year field 0 for DOS epoch, got %d", year)
	}
}

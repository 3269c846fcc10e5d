// Package availability turns busy calendar intervals into labeled
// free-time windows. It is pure: no clock, no network, no state.
package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Policy is the work-hour policy availability is computed against. The
// time zone is a fixed numeric UTC offset; daylight-saving transitions
// are deliberately not modeled, matching how users quote a single zone
// in outreach text.
type Policy struct {
	// StartHour and EndHour bound the working day, half-open [start, end).
	StartHour int
	EndHour   int
	// UTCOffsetHours is the fixed offset east of UTC.
	UTCOffsetHours int
	// ZoneLabel is appended to every emitted line, e.g. "CET".
	ZoneLabel string
	// TargetWeekdays is how many qualifying weekdays to emit.
	TargetWeekdays int
	// MaxScanDays caps the forward scan so the search always terminates.
	MaxScanDays int
}

// Validate checks the policy is coherent.
func (p Policy) Validate() error {
	if p.StartHour < 0 || p.EndHour > 24 || p.StartHour >= p.EndHour {
		return errors.New("work hours must satisfy 0 <= start < end <= 24")
	}
	if p.TargetWeekdays <= 0 {
		return errors.New("target weekday count must be positive")
	}
	if p.MaxScanDays < p.TargetWeekdays {
		return errors.New("scan ceiling must cover the target weekday count")
	}
	return nil
}

// BusyInterval is a committed time range from the provider calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Window is one day's free time: a day label and its free sub-ranges.
type Window struct {
	Day    time.Time
	Ranges []HourRange
}

// HourRange is a free [StartHour, EndHour) range within one day.
type HourRange struct {
	StartHour int
	EndHour   int
}

// Compute scans forward from anchor, skipping weekends, until the
// policy's target weekday count is reached or the scan ceiling is hit.
// Each day's work hours are cut into one-hour slots, busy slots removed
// with the half-open overlap test, and the surviving slots merged into
// maximal ranges. Days with no free time are still counted but carry no
// ranges.
func Compute(busy []BusyInterval, anchor time.Time, policy Policy) ([]Window, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	zone := time.FixedZone(policy.ZoneLabel, policy.UTCOffsetHours*3600)
	day := anchor.In(zone)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, zone)

	var windows []Window
	for scanned := 0; scanned < policy.MaxScanDays && len(windows) < policy.TargetWeekdays; scanned++ {
		current := day.AddDate(0, 0, scanned)
		if current.Weekday() == time.Saturday || current.Weekday() == time.Sunday {
			continue
		}
		windows = append(windows, Window{
			Day:    current,
			Ranges: freeRanges(busy, current, policy),
		})
	}
	return windows, nil
}

// Render formats windows as the outreach-facing string list, one line
// per day with free time.
func Render(windows []Window, policy Policy) []string {
	var lines []string
	for _, w := range windows {
		if len(w.Ranges) == 0 {
			continue
		}
		parts := make([]string, 0, len(w.Ranges))
		for _, r := range w.Ranges {
			parts = append(parts, fmt.Sprintf("%02d:00-%02d:00", r.StartHour, r.EndHour))
		}
		lines = append(lines, fmt.Sprintf("%s (%d/%d): %s %s",
			w.Day.Weekday(), int(w.Day.Month()), w.Day.Day(),
			strings.Join(parts, "; "), policy.ZoneLabel,
		))
	}
	return lines
}

// ComputeLines is Compute followed by Render.
func ComputeLines(busy []BusyInterval, anchor time.Time, policy Policy) ([]string, error) {
	windows, err := Compute(busy, anchor, policy)
	if err != nil {
		return nil, err
	}
	return Render(windows, policy), nil
}

func freeRanges(busy []BusyInterval, day time.Time, policy Policy) []HourRange {
	var ranges []HourRange
	for hour := policy.StartHour; hour < policy.EndHour; hour++ {
		slotStart := day.Add(time.Duration(hour) * time.Hour)
		slotEnd := slotStart.Add(time.Hour)
		if slotBusy(busy, slotStart, slotEnd) {
			continue
		}
		if n := len(ranges); n > 0 && ranges[n-1].EndHour == hour {
			ranges[n-1].EndHour = hour + 1
			continue
		}
		ranges = append(ranges, HourRange{StartHour: hour, EndHour: hour + 1})
	}
	return ranges
}

func slotBusy(busy []BusyInterval, slotStart, slotEnd time.Time) bool {
	for _, b := range busy {
		if b.Start.Before(slotEnd) && b.End.After(slotStart) {
			return true
		}
	}
	return false
}

// Package schedule expands a clinic's recurring weekly timing template into
// concrete bookable time windows. It is pure: no storage, no clock of its own.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTiming = errors.New("invalid clinic timing")

// Timing is the recurring weekly template a clinic declares.
type Timing struct {
	Days        []string // "Monday", "Mon", or ranges like "Mon-Fri"
	StartTime   string   // 12-hour "HH:MM AM/PM"
	EndTime     string   // 12-hour "HH:MM AM/PM"
	SlotMinutes int
}

// Candidate is one generated time window. The caller owns persistence and
// must treat duplicate (doctor, clinic, start) inserts as a no-op.
type Candidate struct {
	Start time.Time
	End   time.Time
}

var dayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// NormalizeDays resolves day tokens (full names, 3-letter abbreviations and
// "Mon-Fri" style ranges) into a weekday set.
func NormalizeDays(tokens []string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool)

	for _, token := range tokens {
		t := strings.ToLower(strings.TrimSpace(token))
		if t == "" {
			continue
		}

		if from, to, ok := strings.Cut(t, "-"); ok {
			start, okFrom := dayNames[strings.TrimSpace(from)]
			end, okTo := dayNames[strings.TrimSpace(to)]
			if !okFrom || !okTo {
				return nil, fmt.Errorf("%w: unknown day range %q", ErrInvalidTiming, token)
			}
			d := start
			for {
				days[d] = true
				if d == end {
					break
				}
				d = (d + 1) % 7
			}
			continue
		}

		d, ok := dayNames[t]
		if !ok {
			return nil, fmt.Errorf("%w: unknown day %q", ErrInvalidTiming, token)
		}
		days[d] = true
	}

	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no working days", ErrInvalidTiming)
	}
	return days, nil
}

// ParseClockTime parses 12-hour "HH:MM AM/PM" into minute-of-day.
func ParseClockTime(s string) (int, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: bad time %q", ErrInvalidTiming, s)
	}

	hm, meridiem := fields[0], strings.ToUpper(fields[1])
	if meridiem != "AM" && meridiem != "PM" {
		return 0, fmt.Errorf("%w: bad time %q", ErrInvalidTiming, s)
	}

	hStr, mStr, ok := strings.Cut(hm, ":")
	if !ok {
		return 0, fmt.Errorf("%w: bad time %q", ErrInvalidTiming, s)
	}
	hours, err := strconv.Atoi(hStr)
	if err != nil || hours < 1 || hours > 12 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidTiming, s)
	}
	minutes, err := strconv.Atoi(mStr)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidTiming, s)
	}

	if meridiem == "PM" && hours != 12 {
		hours += 12
	}
	if meridiem == "AM" && hours == 12 {
		hours = 0
	}
	return hours*60 + minutes, nil
}

// Generate projects the timing template onto each calendar date from now's
// date through min(now + horizonDays - 1, subscriptionEnd), emitting
// consecutive non-overlapping windows and discarding a trailing partial one.
// A subscription end already in the past yields zero candidates; the caller
// surfaces that as an expired-subscription condition.
func Generate(timing Timing, now time.Time, horizonDays int, subscriptionEnd time.Time) ([]Candidate, error) {
	workingDays, err := NormalizeDays(timing.Days)
	if err != nil {
		return nil, err
	}

	startMin, err := ParseClockTime(timing.StartTime)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClockTime(timing.EndTime)
	if err != nil {
		return nil, err
	}
	if endMin <= startMin {
		return nil, fmt.Errorf("%w: end %q not after start %q", ErrInvalidTiming, timing.EndTime, timing.StartTime)
	}
	if timing.SlotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidTiming)
	}
	if horizonDays <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive", ErrInvalidTiming)
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	horizonEnd := today.AddDate(0, 0, horizonDays-1)

	subEndDay := time.Date(subscriptionEnd.Year(), subscriptionEnd.Month(), subscriptionEnd.Day(), 0, 0, 0, 0, loc)
	last := horizonEnd
	if subEndDay.Before(last) {
		last = subEndDay
	}

	var out []Candidate
	for date := today; !date.After(last); date = date.AddDate(0, 0, 1) {
		if !workingDays[date.Weekday()] {
			continue
		}

		dayEnd := date.Add(time.Duration(endMin) * time.Minute)
		cursor := date.Add(time.Duration(startMin) * time.Minute)
		step := time.Duration(timing.SlotMinutes) * time.Minute

		for cursor.Before(dayEnd) {
			windowEnd := cursor.Add(step)
			if windowEnd.After(dayEnd) {
				break
			}
			out = append(out, Candidate{Start: cursor, End: windowEnd})
			cursor = windowEnd
		}
	}

	return out, nil
}

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDays(t *testing.T) {
	t.Run("full names and abbreviations", func(t *testing.T) {
		days, err := NormalizeDays([]string{"Monday", "wed", "FRI"})
		require.NoError(t, err)
		assert.Equal(t, map[time.Weekday]bool{
			time.Monday:    true,
			time.Wednesday: true,
			time.Friday:    true,
		}, days)
	})

	t.Run("range expands inclusively", func(t *testing.T) {
		days, err := NormalizeDays([]string{"Mon-Fri"})
		require.NoError(t, err)
		assert.Len(t, days, 5)
		assert.True(t, days[time.Monday])
		assert.True(t, days[time.Friday])
		assert.False(t, days[time.Saturday])
	})

	t.Run("range wraps the week", func(t *testing.T) {
		days, err := NormalizeDays([]string{"Sat-Mon"})
		require.NoError(t, err)
		assert.Equal(t, map[time.Weekday]bool{
			time.Saturday: true,
			time.Sunday:   true,
			time.Monday:   true,
		}, days)
	})

	t.Run("unknown day fails", func(t *testing.T) {
		_, err := NormalizeDays([]string{"Funday"})
		assert.ErrorIs(t, err, ErrInvalidTiming)
	})

	t.Run("empty set fails", func(t *testing.T) {
		_, err := NormalizeDays([]string{"", "  "})
		assert.ErrorIs(t, err, ErrInvalidTiming)
	})
}

func TestParseClockTime(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"09:00 AM", 9 * 60},
		{"12:00 AM", 0},
		{"12:30 PM", 12*60 + 30},
		{"01:15 PM", 13*60 + 15},
		{"11:59 PM", 23*60 + 59},
	}
	for _, tc := range cases {
		got, err := ParseClockTime(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "09:00", "13:00 PM", "09:60 AM", "nine AM"} {
		_, err := ParseClockTime(bad)
		assert.ErrorIs(t, err, ErrInvalidTiming, bad)
	}
}

func TestGenerate(t *testing.T) {
	// Monday 2026-01-05.
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	farEnd := now.AddDate(1, 0, 0)

	t.Run("one working hour yields two half-hour windows", func(t *testing.T) {
		timing := Timing{
			Days:        []string{"Monday"},
			StartTime:   "09:00 AM",
			EndTime:     "10:00 AM",
			SlotMinutes: 30,
		}

		out, err := Generate(timing, now, 1, farEnd)
		require.NoError(t, err)
		require.Len(t, out, 2)

		assert.Equal(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), out[0].Start)
		assert.Equal(t, time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC), out[0].End)
		assert.Equal(t, out[0].End, out[1].Start)
		assert.Equal(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), out[1].End)
	})

	t.Run("trailing partial window is dropped", func(t *testing.T) {
		timing := Timing{
			Days:        []string{"Monday"},
			StartTime:   "09:00 AM",
			EndTime:     "10:00 AM",
			SlotMinutes: 45,
		}

		out, err := Generate(timing, now, 1, farEnd)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, time.Date(2026, 1, 5, 9, 45, 0, 0, time.UTC), out[0].End)
	})

	t.Run("non-working days produce nothing", func(t *testing.T) {
		timing := Timing{
			Days:        []string{"Sunday"},
			StartTime:   "09:00 AM",
			EndTime:     "10:00 AM",
			SlotMinutes: 30,
		}

		out, err := Generate(timing, now, 6, farEnd)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("subscription end bounds the horizon", func(t *testing.T) {
		timing := Timing{
			Days:        []string{"Mon-Fri"},
			StartTime:   "09:00 AM",
			EndTime:     "10:00 AM",
			SlotMinutes: 60,
		}

		// Horizon says 30 days but the subscription dies Wednesday.
		subEnd := time.Date(2026, 1, 7, 23, 0, 0, 0, time.UTC)
		out, err := Generate(timing, now, 30, subEnd)
		require.NoError(t, err)
		require.Len(t, out, 3) // Mon, Tue, Wed
		assert.Equal(t, time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC), out[2].Start)
	})

	t.Run("subscription already over yields zero candidates", func(t *testing.T) {
		timing := Timing{
			Days:        []string{"Monday"},
			StartTime:   "09:00 AM",
			EndTime:     "10:00 AM",
			SlotMinutes: 30,
		}

		out, err := Generate(timing, now, 30, now.AddDate(0, 0, -7))
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("end not after start fails", func(t *testing.T) {
		timing := Timing{
			Days:        []string{"Monday"},
			StartTime:   "10:00 AM",
			EndTime:     "10:00 AM",
			SlotMinutes: 30,
		}

		_, err := Generate(timing, now, 1, farEnd)
		assert.ErrorIs(t, err, ErrInvalidTiming)
	})

	t.Run("zero slot duration fails", func(t *testing.T) {
		timing := Timing{
			Days:        []string{"Monday"},
			StartTime:   "09:00 AM",
			EndTime:     "10:00 AM",
			SlotMinutes: 0,
		}

		_, err := Generate(timing, now, 1, farEnd)
		assert.ErrorIs(t, err, ErrInvalidTiming)
	})
}

package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"same day", time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), 0},
		{"next day", time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC), 1},
		{"backwards", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), -3},
		{"across month", time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 3},
		{"mixed locations compare dates", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 2, 0, 0, 0, almaty), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.from, tt.to))
		})
	}
}

func TestStartOfDayAndAddDays(t *testing.T) {
	ts := time.Date(2026, 3, 1, 17, 45, 3, 10, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), AddDays(ts, 2))
	assert.True(t, IsSameDay(ts, StartOfDay(ts)))
}

func TestFixedClock(t *testing.T) {
	clock := NewFixedClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))

	clock.AdvanceDays(2)
	assert.Equal(t, time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC), clock.Now())
	assert.Equal(t, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), Today(clock))

	clock.Advance(time.Hour)
	assert.Equal(t, 10, clock.Now().Hour())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-04-09", nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-09", FormatDate(d))

	_, err = ParseDate("09.04.2026", nil)
	assert.Error(t, err)
}

func TestDateIn(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	d := DateIn(time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), loc)

	assert.Equal(t, loc, d.Location())
	assert.Equal(t, "2026-04-09", FormatDate(d))
	assert.Equal(t, 0, d.Hour())
}

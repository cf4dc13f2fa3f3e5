package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	utilsTime := Now()
	standardTime := time.Now().UTC()

	// The times should be very close - within a small delta
	assert.WithinDuration(t, standardTime, utilsTime, 10*time.Millisecond)

	// Ensure the timezone is UTC
	assert.Equal(t, time.UTC, utilsTime.Location())
}

func TestCalendarDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		to       time.Time
		expected int
	}{
		{
			name:     "same instant",
			from:     time.Date(2025, 6, 10, 12, 0, 0, 0, IST),
			to:       time.Date(2025, 6, 10, 12, 0, 0, 0, IST),
			expected: 0,
		},
		{
			name:     "same IST day, hours apart",
			from:     time.Date(2025, 6, 10, 1, 0, 0, 0, IST),
			to:       time.Date(2025, 6, 10, 23, 59, 0, 0, IST),
			expected: 0,
		},
		{
			name:     "twenty minutes across IST midnight counts as one day",
			from:     time.Date(2025, 6, 10, 23, 50, 0, 0, IST),
			to:       time.Date(2025, 6, 11, 0, 10, 0, 0, IST),
			expected: 1,
		},
		{
			name:     "nearly 48 hours but one boundary short of two days",
			from:     time.Date(2025, 6, 10, 0, 10, 0, 0, IST),
			to:       time.Date(2025, 6, 11, 23, 50, 0, 0, IST),
			expected: 1,
		},
		{
			name:     "seven full days",
			from:     time.Date(2025, 6, 1, 9, 0, 0, 0, IST),
			to:       time.Date(2025, 6, 8, 9, 0, 0, 0, IST),
			expected: 7,
		},
		{
			name: "UTC inputs are converted to IST before counting",
			// 19:00 UTC is 00:30 IST the next day, so the boundary has
			// already been crossed relative to 17:00 UTC (22:30 IST).
			from:     time.Date(2025, 6, 10, 17, 0, 0, 0, time.UTC),
			to:       time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC),
			expected: 1,
		},
		{
			name:     "to before from is negative",
			from:     time.Date(2025, 6, 11, 0, 10, 0, 0, IST),
			to:       time.Date(2025, 6, 10, 23, 50, 0, 0, IST),
			expected: -1,
		},
		{
			name:     "month boundary",
			from:     time.Date(2025, 5, 31, 18, 0, 0, 0, IST),
			to:       time.Date(2025, 6, 1, 6, 0, 0, 0, IST),
			expected: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := CalendarDaysBetween(tc.from, tc.to)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestUnixToTime(t *testing.T) {
	tests := []struct {
		name      string
		timestamp int64
		expected  time.Time
	}{
		{
			name:      "valid timestamp",
			timestamp: 1609459200, // 2021-01-01 00:00:00 UTC
			expected:  time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "zero timestamp",
			timestamp: 0,
			expected:  time.Time{},
		},
		{
			name:      "negative timestamp",
			timestamp: -1,
			expected:  time.Time{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := UnixToTime(tc.timestamp)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestFormatISO8601(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "UTC time",
			input:    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: "2021-01-01T00:00:00Z",
		},
		{
			name:     "IST time is converted to UTC",
			input:    time.Date(2021, 1, 1, 5, 30, 0, 0, IST),
			expected: "2021-01-01T00:00:00Z",
		},
		{
			name:     "zero time",
			input:    time.Time{},
			expected: "0001-01-01T00:00:00Z",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := FormatISO8601(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	instant := time.Date(2026, time.March, 9, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, NewDate(2026, time.March, 9), DateOf(instant, time.UTC))
	assert.Equal(t, NewDate(2026, time.March, 10), DateOf(instant, almaty))
}

func TestDaysBetween(t *testing.T) {
	d := NewDate(2026, time.February, 27)

	tests := []struct {
		name string
		to   Date
		want int
	}{
		{"same day", d, 0},
		{"next day", d.AddDays(1), 1},
		{"across month end", NewDate(2026, time.March, 2), 3},
		{"backwards", d.AddDays(-2), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(d, tt.to))
		})
	}
}

func TestDaysBetween_IgnoresDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	before := DateOf(time.Date(2026, time.March, 28, 23, 0, 0, 0, berlin), berlin)
	after := DateOf(time.Date(2026, time.March, 29, 23, 0, 0, 0, berlin), berlin)

	assert.Equal(t, 1, DaysBetween(before, after))
}

func TestNewDate_Normalizes(t *testing.T) {
	assert.Equal(t, Date{Year: 2026, Month: time.February, Day: 1}, NewDate(2026, time.January, 32))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2026, time.October, 14), d)

	for _, bad := range []string{"", "2026-13-01", "14.10.2026", "2026-10-14T00:00:00Z"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Day  Date  `json:"day"`
		Last *Date `json:"last"`
	}

	data, err := json.Marshal(wrapper{Day: NewDate(2026, time.May, 3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2026-05-03","last":null}`, string(data))

	var decoded wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2026-05-03","last":"2026-05-02"}`), &decoded))
	assert.Equal(t, NewDate(2026, time.May, 3), decoded.Day)
	require.NotNil(t, decoded.Last)
	assert.Equal(t, NewDate(2026, time.May, 2), *decoded.Last)

	assert.Error(t, json.Unmarshal([]byte(`{"day":"yesterday"}`), &decoded))
}

func TestNextMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	now := time.Date(2026, time.October, 14, 18, 0, 0, 0, time.UTC) // 23:00 local

	assert.Equal(t, time.Date(2026, time.October, 15, 0, 0, 0, 0, loc), NextMidnight(now, loc))
}

func TestIsConsecutiveDay(t *testing.T) {
	a := time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC)
	b := time.Date(2027, time.January, 1, 0, 1, 0, 0, time.UTC)

	assert.True(t, IsConsecutiveDay(a, b, time.UTC))
	assert.False(t, IsSameDay(a, b, time.UTC))
	assert.Equal(t, 23, HourIn(a, nil))
}

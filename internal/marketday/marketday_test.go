package marketday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	d := time.Date(2025, 10, 6, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "251006", Key(d))
}

func TestParseKey(t *testing.T) {
	t.Run("round trips a valid key", func(t *testing.T) {
		d, err := ParseKey("251006")
		require.NoError(t, err)
		assert.Equal(t, 2025, d.Year())
		assert.Equal(t, time.October, d.Month())
		assert.Equal(t, 6, d.Day())
	})

	t.Run("rejects malformed keys", func(t *testing.T) {
		_, err := ParseKey("2025-10-06")
		require.Error(t, err)
	})
}

func TestIsBusinessDay(t *testing.T) {
	saturday := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)
	sunday := saturday.AddDate(0, 0, 1)
	monday := saturday.AddDate(0, 0, 2)

	assert.False(t, IsBusinessDay(saturday))
	assert.False(t, IsBusinessDay(sunday))
	assert.True(t, IsBusinessDay(monday))
}

func TestWalkBack(t *testing.T) {
	t.Run("skips weekend anchor and lands on Friday", func(t *testing.T) {
		saturday := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)
		days := WalkBack(saturday, 3)

		require.Len(t, days, 3)
		assert.Equal(t, time.Friday, days[0].Weekday())
		assert.Equal(t, 3, days[0].Day())
		assert.Equal(t, time.Thursday, days[1].Weekday())
		assert.Equal(t, time.Wednesday, days[2].Weekday())
	})

	t.Run("includes a business day anchor", func(t *testing.T) {
		monday := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
		days := WalkBack(monday, 2)

		require.Len(t, days, 2)
		assert.Equal(t, monday, days[0])
		assert.Equal(t, time.Friday, days[1].Weekday())
	})
}

func TestBetween(t *testing.T) {
	// Wed 2025-10-01 through Tue 2025-10-07 spans one weekend
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC)

	days := Between(start, end)
	require.Len(t, days, 5)
	assert.Equal(t, time.Wednesday, days[0].Weekday())
	assert.Equal(t, time.Tuesday, days[4].Weekday())
	for _, d := range days {
		assert.True(t, IsBusinessDay(d))
	}
}

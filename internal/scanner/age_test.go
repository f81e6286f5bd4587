package scanner

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAgeHoursEpochSeconds(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-9 * time.Hour)

	age := TokenAgeHours(strconv.FormatInt(created.Unix(), 10), now)
	require.NotNil(t, age)
	assert.InDelta(t, 9.0, *age, 0.01)
}

func TestTokenAgeHoursTextTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	age := TokenAgeHours("2024-06-01 10:30:00", now)
	require.NotNil(t, age)
	assert.InDelta(t, 1.5, *age, 0.01)
}

func TestTokenAgeHoursUnparsable(t *testing.T) {
	now := time.Now()

	assert.Nil(t, TokenAgeHours("", now))
	assert.Nil(t, TokenAgeHours("not a timestamp", now))
	assert.Nil(t, TokenAgeHours("2024/06/01", now))
	assert.Nil(t, TokenAgeHours("12:00", now))
}

func TestTokenAgeHoursFutureClampedToZero(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	age := TokenAgeHours("2024-06-01 13:00:00", now)
	require.NotNil(t, age)
	assert.Equal(t, 0.0, *age)
}

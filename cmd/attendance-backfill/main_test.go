package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

func TestReferenceClock(t *testing.T) {
	clock, err := referenceClock("2025-05-20T06:30:00+07:00", time.UTC)
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(time.Date(2025, 5, 19, 23, 30, 0, 0, time.UTC)))

	clock, err = referenceClock("2025-05-20", nil)
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)))

	clock, err = referenceClock("", time.UTC)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), clock.Now(), time.Minute)

	_, err = referenceClock("20/05/2025", time.UTC)
	assert.Error(t, err)
}

func TestReferenceClockBareDateKeepsLocalDay(t *testing.T) {
	newYork := time.FixedZone("EST", -5*3600)

	clock, err := referenceClock("2025-05-20", newYork)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), models.CalendarDayIn(clock.Now(), newYork))

	jakarta := time.FixedZone("WIB", 7*3600)
	clock, err = referenceClock("2025-05-20", jakarta)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), models.CalendarDayIn(clock.Now(), jakarta))
}

package payload

import (
	"testing"
	"time"

	"github.com/minisource/schedulerd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduleCron(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	sched, first, subSecond, err := NewSchedule(models.JobTypeCron, "0 0 9 * * *", now)
	require.NoError(t, err)
	assert.False(t, subSecond)

	want := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, want, first)

	next, ok := sched.Next(first)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC).Unix(), next)
}

func TestNewScheduleCronRejectsInvalidExpression(t *testing.T) {
	_, _, _, err := NewSchedule(models.JobTypeCron, "not a cron expression", time.Now())
	assert.Error(t, err)
}

func TestNewScheduleInterval(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	sched, first, subSecond, err := NewSchedule(models.JobTypeInterval, "300", now)
	require.NoError(t, err)
	assert.False(t, subSecond)
	assert.Equal(t, now.Unix()+300, first)

	next, ok := sched.Next(first)
	assert.True(t, ok)
	assert.Equal(t, first+300, next)
}

func TestNewScheduleIntervalSubSecondPrecision(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	sched, first, subSecond, err := NewSchedule(models.JobTypeInterval, "1.5", now)
	require.NoError(t, err)
	assert.True(t, subSecond)
	// Rounded down to the enclosing whole second for queuing purposes.
	assert.Equal(t, now.Unix()+1, first)

	next, ok := sched.Next(first)
	assert.True(t, ok)
	assert.Equal(t, first+1, next)
}

func TestNewScheduleIntervalRejectsNonPositive(t *testing.T) {
	_, _, _, err := NewSchedule(models.JobTypeInterval, "0", time.Now())
	assert.Error(t, err)

	_, _, _, err = NewSchedule(models.JobTypeInterval, "-5", time.Now())
	assert.Error(t, err)
}

func TestNewScheduleOneTime(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	instant := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	sched, first, subSecond, err := NewSchedule(models.JobTypeOneTime, instant.Format(time.RFC3339), now)
	require.NoError(t, err)
	assert.False(t, subSecond)
	assert.Equal(t, instant.Unix(), first)

	// A one-shot schedule is exhausted after its single instant is consumed.
	_, ok := sched.Next(first + 1)
	assert.False(t, ok)
}

func TestNewScheduleOneTimeRejectsMalformedInstant(t *testing.T) {
	_, _, _, err := NewSchedule(models.JobTypeOneTime, "not-a-timestamp", time.Now())
	assert.Error(t, err)
}

func TestNewScheduleUnknownType(t *testing.T) {
	_, _, _, err := NewSchedule(models.JobType("bogus"), "", time.Now())
	assert.Error(t, err)
}

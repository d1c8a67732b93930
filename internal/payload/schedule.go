// Package payload adapts HTTP-triggered jobs onto the scheduler core's
// PayloadAdapter, IdentityAdapter-free Schedule, and ExecResult types.
package payload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minisource/schedulerd/internal/models"
	"github.com/minisource/schedulerd/internal/sched/job"
	"github.com/robfig/cron/v3"
)

// cronParser accepts the same six-field-plus-descriptor grammar the
// teacher's scheduler configured, so existing cron strings keep working.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// cronSchedule recurs indefinitely per a parsed cron.Schedule.
type cronSchedule struct {
	sched cron.Schedule
}

func (c cronSchedule) Next(from int64) (int64, bool) {
	next := c.sched.Next(time.Unix(from, 0).UTC())
	return next.Unix(), true
}

// intervalSchedule recurs indefinitely every fixed duration, measured
// from the instant the previous fire was due (not from wall-clock
// completion time), matching the teacher's fixed-interval semantics.
type intervalSchedule struct {
	seconds int64
}

func (i intervalSchedule) Next(from int64) (int64, bool) {
	return from + i.seconds, true
}

// onceSchedule fires exactly once, at instant.
type onceSchedule struct {
	instant int64
	spent   bool
}

func (o *onceSchedule) Next(from int64) (int64, bool) {
	if o.spent || from > o.instant {
		return 0, false
	}
	o.spent = true
	return o.instant, true
}

// NewSchedule builds a job.Schedule from a job definition's recurrence
// fields and returns the first fire instant (UTC seconds), grounded on
// the teacher's CalculateNextRun. scheduleExpr holds a cron expression
// for JobTypeCron, a JSON number of seconds for JobTypeInterval, or an
// RFC3339 instant for JobTypeOneTime.
//
// subSecond reports whether the recurrence expresses sub-second
// precision (an interval like "0.5", or a one-time/cron instant with a
// fractional second) — the scheduler core only represents fire instants
// as whole UTC seconds, so such a request is not rejected at creation
// time; it is accepted, rounded to the enclosing second for queuing
// purposes, and left for the payload adapter to report as
// ExecUnsupportedPrecision (and skip) at fire time, per the original
// engine's EVEX_MICROSECOND_UNSUP handling.
func NewSchedule(jobType models.JobType, scheduleExpr string, now time.Time) (sc job.Schedule, firstFireAt int64, subSecond bool, err error) {
	switch jobType {
	case models.JobTypeCron:
		parsed, parseErr := cronParser.Parse(scheduleExpr)
		if parseErr != nil {
			return nil, 0, false, fmt.Errorf("invalid cron expression: %w", parseErr)
		}
		first := parsed.Next(now)
		return cronSchedule{sched: parsed}, first.Unix(), first.Nanosecond() != 0, nil

	case models.JobTypeInterval:
		var seconds float64
		if unmarshalErr := json.Unmarshal([]byte(scheduleExpr), &seconds); unmarshalErr != nil {
			return nil, 0, false, fmt.Errorf("invalid interval: %w", unmarshalErr)
		}
		if seconds <= 0 {
			return nil, 0, false, fmt.Errorf("interval must be positive, got %v", seconds)
		}
		whole := int64(seconds)
		if whole < 1 {
			whole = 1
		}
		return intervalSchedule{seconds: whole}, now.Unix() + whole, seconds != float64(whole), nil

	case models.JobTypeOneTime:
		instant, parseErr := time.Parse(time.RFC3339, scheduleExpr)
		if parseErr != nil {
			return nil, 0, false, fmt.Errorf("invalid one-time instant: %w", parseErr)
		}
		return &onceSchedule{instant: instant.Unix()}, instant.Unix(), instant.Nanosecond() != 0, nil

	default:
		return nil, 0, false, fmt.Errorf("unknown job type: %s", jobType)
	}
}

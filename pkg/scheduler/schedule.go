package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule determines when a periodic job runs next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type dailySchedule struct {
	hour   int
	minute int
	loc    *time.Location
}

func (s dailySchedule) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d %s", s.hour, s.minute, s.loc)
}

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := from.Truncate(time.Hour).Add(time.Duration(s.minute) * time.Minute)
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

// EveryInterval runs at a fixed interval counted from the previous run.
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// DailyAt runs once a day at hour:minute UTC.
func DailyAt(hour, minute int) Schedule {
	return DailyAtIn(hour, minute, time.UTC)
}

// DailyAtIn runs once a day at hour:minute in loc.
func DailyAtIn(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return dailySchedule{hour: hour, minute: minute, loc: loc}
}

// HourlyAt runs every hour at the given minute.
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: minute}
}

type cronSchedule struct {
	expr  string
	sched cron.Schedule
}

func (s cronSchedule) Next(from time.Time) time.Time {
	return s.sched.Next(from)
}

func (s cronSchedule) String() string {
	return "cron " + s.expr
}

// Cron parses a standard five-field expression or a descriptor such as
// "@daily". Times are UTC unless the expression starts with CRON_TZ=<zone>.
func Cron(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty cron expression", ErrInvalidSchedule)
	}
	spec := expr
	if !strings.HasPrefix(spec, "CRON_TZ=") && !strings.HasPrefix(spec, "TZ=") {
		spec = "CRON_TZ=UTC " + spec
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	// cron reports a zero time for expressions that never fire, e.g. Feb 30.
	if sched.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("%w: %q never fires", ErrInvalidSchedule, expr)
	}
	return cronSchedule{expr: expr, sched: sched}, nil
}

func validate(s Schedule) error {
	switch v := s.(type) {
	case nil:
		return fmt.Errorf("%w: schedule is nil", ErrInvalidSchedule)
	case intervalSchedule:
		if v.every <= 0 {
			return fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
		}
	case dailySchedule:
		if v.hour < 0 || v.hour > 23 || v.minute < 0 || v.minute > 59 {
			return fmt.Errorf("%w: %s", ErrInvalidSchedule, v)
		}
	case hourlySchedule:
		if v.minute < 0 || v.minute > 59 {
			return fmt.Errorf("%w: %s", ErrInvalidSchedule, v)
		}
	}
	return nil
}

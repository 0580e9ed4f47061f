package scheduler

import "errors"

var (
	ErrNoJobs               = errors.New("scheduler has no jobs")
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrJobNotFound          = errors.New("job not found")
	ErrInvalidSchedule      = errors.New("invalid schedule")
)

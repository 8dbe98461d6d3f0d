package scheduler

import (
	"fmt"
	"time"

	"github.com/kislikjeka/moneyledger/pkg/config"
)

const defaultRunTimeout = 2 * time.Minute

// Job is the polling policy of one exchange source
type Job struct {
	SourceKey string
	// Interval between runs inside the window, or always when there is no window
	Interval time.Duration
	// FallbackInterval between runs outside the window; zero disables them
	FallbackInterval time.Duration
	RunTimeout       time.Duration
	Window           *config.ResolvedWindow
}

// JobsFromConfig builds one job per source that has a polling interval
func JobsFromConfig(cfg *config.ExchangeConfig) ([]Job, error) {
	var jobs []Job
	for _, source := range cfg.Sources {
		schedule := source.Schedule
		if schedule.Interval <= 0 {
			continue
		}

		job := Job{
			SourceKey:        source.Key,
			Interval:         schedule.Interval,
			FallbackInterval: schedule.FallbackInterval,
			RunTimeout:       schedule.RunTimeout,
		}
		if schedule.Window != nil {
			w, err := schedule.Window.Resolve()
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", source.Key, err)
			}
			job.Window = w
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Due reports whether a run should happen at now
func (j Job) Due(now time.Time) bool {
	return j.Window == nil || j.Window.Contains(now) || j.FallbackInterval > 0
}

// NextDelay is the wait before the next run is considered
func (j Job) NextDelay(now time.Time) time.Duration {
	if j.Window == nil || j.Window.Contains(now) {
		return j.Interval
	}

	untilOpen := j.Window.NextStart(now).Sub(now)
	if j.FallbackInterval > 0 && j.FallbackInterval < untilOpen {
		return j.FallbackInterval
	}
	return untilOpen
}

func (j Job) timeout() time.Duration {
	if j.RunTimeout > 0 {
		return j.RunTimeout
	}
	return defaultRunTimeout
}

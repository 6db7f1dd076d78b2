// Package countdown tracks the time left until the next live show.
package countdown

import (
	"context"
	"sync"
	"time"

	"webuild/internal/config"
	appLog "webuild/internal/log"
	"webuild/internal/podcast"
	"webuild/internal/timefmt"
)

// Countdown is the remaining time split into display units.
type Countdown struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// Calculate returns the time from now until target, all zero once target
// has passed.
func Calculate(now, target time.Time) Countdown {
	d := target.Sub(now)
	if d <= 0 {
		return Countdown{}
	}
	total := int(d / time.Second)
	return Countdown{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}

// Service keeps the next live show start time in memory.
type Service struct {
	cfg    *config.Config
	client *podcast.Client

	mu        sync.RWMutex
	target    time.Time
	formatted string
}

// NewService constructs a Service with no known target; call Update to fetch one.
func NewService(cfg *config.Config, client *podcast.Client) *Service {
	return &Service{cfg: cfg, client: client}
}

// Update fetches the next live show. On failure the previous target is kept.
func (s *Service) Update(ctx context.Context) error {
	show, err := s.client.NextLiveShow(ctx)
	if err != nil {
		return err
	}
	s.Set(show.StartTime)
	appLog.Info("countdown updated", "target", show.StartTime.UTC().Format(time.RFC3339))
	return nil
}

// Set replaces the target time.
func (s *Service) Set(target time.Time) {
	formatted := timefmt.FormatLocalTime(target, s.cfg.Offset(), s.cfg.DisplayTimeFormat)
	s.mu.Lock()
	s.target = target
	s.formatted = formatted
	s.mu.Unlock()
}

// Current returns the countdown at now and the formatted target time.
// Without a known target both are zero values.
func (s *Service) Current(now time.Time) (Countdown, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.target.IsZero() {
		return Countdown{}, ""
	}
	return Calculate(now, s.target), s.formatted
}

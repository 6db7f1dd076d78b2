// Package events builds the upcoming-events feed from group calendars.
package events

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"webuild/internal/config"
	"webuild/internal/ics"
	appLog "webuild/internal/log"
	"webuild/internal/model"
	"webuild/internal/sanitize"
	"webuild/internal/timefmt"
)

const platformICS = "ics"

// Service refreshes and serves the events feed. The feed lives in memory only.
type Service struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	now     func() time.Time

	// refreshMu serializes Refresh so an older, slower refresh never
	// overwrites the feed stored by a newer one.
	refreshMu sync.Mutex

	mu   sync.RWMutex
	feed model.EventsFeed
}

// NewService constructs a Service with an empty feed.
func NewService(cfg *config.Config, fetcher *ics.Fetcher) *Service {
	s := &Service{
		cfg:     cfg,
		fetcher: fetcher,
		now:     time.Now,
	}
	s.feed = s.newFeed(nil)
	return s
}

// Feed returns the current feed.
func (s *Service) Feed() model.EventsFeed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

// Upcoming returns at most n events from the current feed.
func (s *Service) Upcoming(n int) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.feed.Events) {
		n = len(s.feed.Events)
	}
	return append([]model.Event(nil), s.feed.Events[:n]...)
}

// OnDate returns the events starting on the same calendar day as day, both
// read in the configured offset.
func (s *Service) OnDate(day time.Time) []model.Event {
	offset := s.cfg.Offset()
	want := timefmt.LocalTime(day, offset).Format(time.DateOnly)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0)
	for _, ev := range s.feed.Events {
		if timefmt.LocalTime(ev.StartTime, offset).Format(time.DateOnly) == want {
			out = append(out, ev)
		}
	}
	return out
}

// Check returns a feed of the events that clash with day.
func (s *Service) Check(day time.Time) model.EventsFeed {
	return s.newFeed(s.OnDate(day))
}

// Refresh fetches every configured group calendar and replaces the feed.
// Sources that fail to download or parse are logged and skipped. If every
// source fails the current feed is kept and the first source's error is
// returned. Concurrent calls run one after another.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	sources := s.sources()
	if len(sources) == 0 {
		s.store(s.newFeed(nil))
		appLog.Info("events feed refreshed", "sources", 0, "events", 0)
		return nil
	}

	results, err := s.fetcher.FetchAll(ctx, sources)
	if err != nil {
		return fmt.Errorf("events: all %d sources failed: %w", len(sources), err)
	}

	parsed := make([]ics.ParsedEvent, 0)
	errs := make([]error, len(results))
	failed := 0
	for i, res := range results {
		if res.Failed() {
			errs[i] = res.Err
			failed++
			continue
		}
		evs, err := ics.ParseICS(res.Value.Source, res.Value.Body)
		if err != nil {
			errs[i] = fmt.Errorf("ics: %s: %w", res.Value.Source.ID, err)
			failed++
			appLog.Error("events: parse failed", err, "id", res.Value.Source.ID)
			continue
		}
		parsed = append(parsed, evs...)
	}
	if failed == len(results) {
		return fmt.Errorf("events: all %d sources failed: %w", len(sources), errs[0])
	}

	now := s.now()
	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		RangeStart: now,
		RangeEnd:   now.AddDate(0, 0, s.cfg.Events.HorizonDays),
	})
	if err != nil {
		return fmt.Errorf("events: expand: %w", err)
	}

	feed := s.newFeed(s.toEvents(expanded.Occurrences))
	s.store(feed)

	appLog.Info("events feed refreshed",
		"sources", len(sources),
		"failed_sources", failed,
		"events", len(feed.Events),
	)
	return nil
}

func (s *Service) store(feed model.EventsFeed) {
	s.mu.Lock()
	s.feed = feed
	s.mu.Unlock()
}

func (s *Service) sources() []ics.Source {
	out := make([]ics.Source, 0, len(s.cfg.Events.Sources))
	for _, gs := range s.cfg.Events.Sources {
		if gs.URL == "" {
			continue
		}
		id := gs.ID
		if id == "" {
			id = gs.Name
		}
		if id == "" {
			id = gs.URL
		}
		if s.blacklisted(id, gs.Name) {
			appLog.Debug("events: skipping blacklisted group", "id", id)
			continue
		}
		out = append(out, ics.Source{ID: id, Name: gs.Name, URL: gs.URL, GroupURL: gs.GroupURL})
	}
	return out
}

func (s *Service) blacklisted(id, name string) bool {
	for _, b := range s.cfg.Events.Blacklist {
		if strings.EqualFold(b, id) || (name != "" && strings.EqualFold(b, name)) {
			return true
		}
	}
	return false
}

// toEvents converts occurrences into feed events, dropping duplicate
// instances that appear in more than one calendar.
func (s *Service) toEvents(occs []ics.Occurrence) []model.Event {
	offset := s.cfg.Offset()
	seen := make(map[string]struct{}, len(occs))
	out := make([]model.Event, 0, len(occs))

	for _, occ := range occs {
		ev := occ.Event
		if _, dup := seen[occ.InstanceKey]; dup {
			continue
		}
		seen[occ.InstanceKey] = struct{}{}

		url := ev.URL
		if url == "" {
			url = ev.Source.GroupURL
		}
		location := ev.Location
		if location == "" {
			location = s.cfg.City
		}

		out = append(out, model.Event{
			ID:            occ.InstanceKey,
			Name:          sanitize.StripMarkup(ev.Summary),
			Description:   sanitize.StripMarkup(ev.Description),
			Location:      location,
			URL:           url,
			GroupID:       ev.Source.ID,
			GroupName:     ev.Source.Name,
			GroupURL:      ev.Source.GroupURL,
			FormattedTime: timefmt.FormatLocalTime(occ.Start, offset, s.cfg.DisplayTimeFormat),
			UnixStartTime: occ.Start.Unix(),
			StartTime:     timefmt.LocalTime(occ.Start, offset),
			EndTime:       timefmt.LocalTime(occ.End, offset),
			Platform:      platformICS,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (s *Service) newFeed(evs []model.Event) model.EventsFeed {
	if evs == nil {
		evs = []model.Event{}
	}
	return model.EventsFeed{
		Meta: model.FeedMeta{
			GeneratedAt: s.now().UTC().Format(time.RFC3339),
			Location:    s.cfg.City,
			APIVersion:  s.cfg.APIVersion,
			TotalEvents: model.IntPtr(len(evs)),
		},
		Events: evs,
	}
}

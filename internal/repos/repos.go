// Package repos builds the feed of recently active GitHub repositories
// owned by developers in the configured city.
package repos

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"webuild/internal/async"
	"webuild/internal/config"
	appLog "webuild/internal/log"
	"webuild/internal/model"
	"webuild/internal/sanitize"
	"webuild/internal/timefmt"
)

// maxInFlight bounds concurrent per-user repo requests.
const maxInFlight = 8

// Service refreshes and serves the repos feed.
type Service struct {
	cfg    *config.Config
	client *Client
	now    func() time.Time

	// refreshMu serializes Refresh so an older, slower refresh never
	// overwrites the feed stored by a newer one.
	refreshMu sync.Mutex

	mu   sync.RWMutex
	feed model.ReposFeed
}

// NewService constructs a Service with an empty feed.
func NewService(cfg *config.Config, client *Client) *Service {
	s := &Service{cfg: cfg, client: client, now: time.Now}
	s.feed = s.newFeed(nil)
	return s
}

// Feed returns the current feed.
func (s *Service) Feed() model.ReposFeed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

// Top returns at most n repos from the current feed.
func (s *Service) Top(n int) []model.Repo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.feed.Repos) {
		n = len(s.feed.Repos)
	}
	return append([]model.Repo(nil), s.feed.Repos[:n]...)
}

// ByLanguage returns a feed holding only repos written in language,
// compared case-insensitively. Repos without a language never match.
func (s *Service) ByLanguage(language string) model.ReposFeed {
	language = strings.ToLower(language)

	s.mu.RLock()
	all := s.feed
	s.mu.RUnlock()

	matched := make([]model.Repo, 0)
	for _, r := range all.Repos {
		if r.Language != "" && strings.ToLower(r.Language) == language {
			matched = append(matched, r)
		}
	}

	meta := all.Meta
	meta.GeneratedAt = s.now().UTC().Format(time.RFC3339)
	meta.TotalRepos = model.IntPtr(len(all.Repos))
	meta.MaxRepos = model.IntPtr(len(matched))
	return model.ReposFeed{Meta: meta, Repos: matched}
}

// Refresh searches users by location, fetches their repos concurrently and
// replaces the feed. Users whose repos cannot be fetched are skipped; if
// every user fails the current feed is kept. Concurrent calls run one after
// another.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	rc := s.cfg.Repos
	logins, err := s.client.SearchUsers(ctx, rc.Location, rc.MaxUsers)
	if err != nil {
		return fmt.Errorf("repos: %w", err)
	}

	sem := semaphore.NewWeighted(maxInFlight)
	futures := make([]*async.Future[[]ghRepo], len(logins))
	for i, login := range logins {
		futures[i] = async.Go(func() ([]ghRepo, error) {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			defer sem.Release(1)
			return s.client.UserRepos(ctx, login)
		})
	}

	results, err := async.WaitAll(futures)
	if err != nil {
		return fmt.Errorf("repos: all %d users failed: %w", len(logins), err)
	}

	cutoff := s.now().AddDate(0, 0, -rc.MaxDays)
	seen := make(map[string]struct{})
	picked := make([]model.Repo, 0)
	failed := 0

	for i, res := range results {
		if res.Failed() {
			failed++
			appLog.Warn("repos: user skipped", "login", logins[i], "reason", res.Err.Error())
			continue
		}
		for _, r := range res.Value {
			if r.Fork || r.Stars < rc.MinStars || r.PushedAt.Before(cutoff) {
				continue
			}
			if _, dup := seen[r.FullName]; dup {
				continue
			}
			seen[r.FullName] = struct{}{}
			picked = append(picked, s.toRepo(r))
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].PushedAt.After(picked[j].PushedAt)
	})
	if len(picked) > rc.MaxRepos {
		picked = picked[:rc.MaxRepos]
	}

	feed := s.newFeed(picked)
	s.mu.Lock()
	s.feed = feed
	s.mu.Unlock()

	appLog.Info("repos feed refreshed", "users", len(logins), "failed_users", failed, "repos", len(picked))
	return nil
}

func (s *Service) toRepo(r ghRepo) model.Repo {
	var lang string
	if r.Language != nil {
		lang = *r.Language
	}

	return model.Repo{
		Name:          r.Name,
		Description:   sanitize.StripMarkupPtr(r.Description),
		Language:      lang,
		HTMLURL:       r.HTMLURL,
		Owner:         model.Owner(r.Owner),
		Stars:         r.Stars,
		Forks:         r.Forks,
		PushedAt:      r.PushedAt,
		UpdatedAt:     r.UpdatedAt,
		FormattedTime: timefmt.FormatLocalTime(r.PushedAt, s.cfg.Offset(), s.cfg.DisplayTimeFormat),
	}
}

func (s *Service) newFeed(rs []model.Repo) model.ReposFeed {
	if rs == nil {
		rs = []model.Repo{}
	}
	return model.ReposFeed{
		Meta: model.FeedMeta{
			GeneratedAt: s.now().UTC().Format(time.RFC3339),
			Location:    s.cfg.City,
			APIVersion:  s.cfg.APIVersion,
			TotalRepos:  model.IntPtr(len(rs)),
			MaxRepos:    model.IntPtr(s.cfg.Repos.MaxRepos),
		},
		Repos: rs,
	}
}

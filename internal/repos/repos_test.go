package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webuild/internal/config"
)

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeGitHub struct {
	srv       *httptest.Server
	failRepos atomic.Bool
	authSeen  atomic.Value

	searches    atomic.Int32
	maxSearches atomic.Int32
}

func repoJSON(owner, name, lang string, stars int, fork bool, pushed time.Time) map[string]any {
	var language any
	if lang != "" {
		language = lang
	}
	return map[string]any{
		"name":             name,
		"full_name":        owner + "/" + name,
		"description":      "<em>" + name + "</em> repo",
		"language":         language,
		"html_url":         "https://github.com/" + owner + "/" + name,
		"fork":             fork,
		"stargazers_count": stars,
		"forks_count":      1,
		"pushed_at":        pushed.Format(time.RFC3339),
		"updated_at":       pushed.Format(time.RFC3339),
		"owner": map[string]any{
			"login":      owner,
			"avatar_url": "https://avatars.example.com/" + owner,
			"html_url":   "https://github.com/" + owner,
		},
	}
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{}
	repos := map[string][]map[string]any{
		"alice": {
			repoJSON("alice", "fresh-go", "Go", 10, false, fixedNow.Add(-24*time.Hour)),
			repoJSON("alice", "forked", "Go", 50, true, fixedNow.Add(-time.Hour)),
			repoJSON("alice", "stale", "Go", 50, false, fixedNow.AddDate(0, -6, 0)),
		},
		"bob": {
			repoJSON("bob", "newest-js", "JavaScript", 3, false, fixedNow.Add(-time.Hour)),
			repoJSON("bob", "docs", "", 3, false, fixedNow.Add(-2*time.Hour)),
		},
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.authSeen.Store(r.Header.Get("Authorization"))
		switch {
		case r.URL.Path == "/search/users":
			n := f.searches.Add(1)
			defer f.searches.Add(-1)
			for {
				m := f.maxSearches.Load()
				if n <= m || f.maxSearches.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			if r.URL.Query().Get("q") != `location:"Singapore"` {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"total_count": 3,
				"items": []map[string]string{
					{"login": "alice"}, {"login": "ghost"}, {"login": "bob"},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/users/"):
			login := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/users/"), "/repos")
			rs, ok := repos[login]
			if !ok || f.failRepos.Load() {
				http.Error(w, fmt.Sprintf("no user %s", login), http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(rs)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newTestService(f *fakeGitHub) *Service {
	cfg := config.DefaultConfig()
	cfg.Repos.APIURL = f.srv.URL
	cfg.Repos.Token = "tok"
	s := NewService(cfg, NewClient(cfg.Repos.APIURL, cfg.Repos.Token, f.srv.Client()))
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestRefreshBuildsFeed(t *testing.T) {
	f := newFakeGitHub(t)
	s := newTestService(f)

	require.NoError(t, s.Refresh(context.Background()))
	feed := s.Feed()

	var names []string
	for _, r := range feed.Repos {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"newest-js", "docs", "fresh-go"}, names, "forks and stale repos are dropped, newest push first")

	assert.Equal(t, 3, *feed.Meta.TotalRepos)
	assert.Equal(t, 50, *feed.Meta.MaxRepos)
	assert.Equal(t, "Singapore", feed.Meta.Location)
	assert.Nil(t, feed.Meta.TotalEvents)

	js := feed.Repos[0]
	assert.Equal(t, "newest-js repo", js.Description)
	assert.Equal(t, "bob", js.Owner.Login)
	assert.Equal(t, "01 Jun 2024, Sat, 7:00 am", js.FormattedTime)
	assert.Equal(t, "Bearer tok", f.authSeen.Load())
}

func TestRefreshCapsAndFiltersStars(t *testing.T) {
	f := newFakeGitHub(t)
	s := newTestService(f)
	s.cfg.Repos.MaxRepos = 1
	s.cfg.Repos.MinStars = 5

	require.NoError(t, s.Refresh(context.Background()))
	feed := s.Feed()
	require.Len(t, feed.Repos, 1)
	assert.Equal(t, "fresh-go", feed.Repos[0].Name)
}

func TestRefreshAllUsersFailedKeepsFeed(t *testing.T) {
	f := newFakeGitHub(t)
	s := newTestService(f)
	require.NoError(t, s.Refresh(context.Background()))
	before := s.Feed()

	f.failRepos.Store(true)
	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alice", "error comes from the first user")
	assert.Equal(t, before, s.Feed())
}

func TestRefreshCallsDoNotOverlap(t *testing.T) {
	f := newFakeGitHub(t)
	s := newTestService(f)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.maxSearches.Load())
}

func TestByLanguage(t *testing.T) {
	s := newTestService(newFakeGitHub(t))
	require.NoError(t, s.Refresh(context.Background()))

	goRepos := s.ByLanguage("GO")
	require.Len(t, goRepos.Repos, 1)
	assert.Equal(t, "fresh-go", goRepos.Repos[0].Name)
	assert.Equal(t, 3, *goRepos.Meta.TotalRepos)
	assert.Equal(t, 1, *goRepos.Meta.MaxRepos)

	assert.Empty(t, s.ByLanguage("").Repos, "repos without a language never match")
	assert.Empty(t, s.ByLanguage("cobol").Repos)
}

func TestTop(t *testing.T) {
	s := newTestService(newFakeGitHub(t))
	assert.Empty(t, s.Top(10))

	require.NoError(t, s.Refresh(context.Background()))
	assert.Len(t, s.Top(2), 2)
	assert.Len(t, s.Top(10), 3)
}

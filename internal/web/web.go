package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"webuild/internal/calendar"
	"webuild/internal/config"
	"webuild/internal/countdown"
	appLog "webuild/internal/log"
	"webuild/internal/model"
	"webuild/internal/sitemap"
	"webuild/internal/timefmt"
)

const (
	homepageEvents = 10
	homepageRepos  = 10
	shutdownGrace  = 5 * time.Second
)

// EventsFeed is the events side of the site.
type EventsFeed interface {
	Feed() model.EventsFeed
	Upcoming(n int) []model.Event
	Check(day time.Time) model.EventsFeed
	Refresh(ctx context.Context) error
}

// ReposFeed is the repositories side of the site.
type ReposFeed interface {
	Feed() model.ReposFeed
	Top(n int) []model.Repo
	ByLanguage(language string) model.ReposFeed
	Refresh(ctx context.Context) error
}

// Countdown reports the time left until the next live show.
type Countdown interface {
	Current(now time.Time) (countdown.Countdown, string)
}

// Podcast reads the live podcast API.
type Podcast interface {
	Raw(ctx context.Context) ([]byte, error)
	NextLiveShow(ctx context.Context) (model.LiveShow, error)
}

// Deps groups the services the server reads from.
type Deps struct {
	Events    EventsFeed
	Repos     ReposFeed
	Countdown Countdown
	Podcast   Podcast

	// AfterRefresh, if set, runs after a refresh triggered through the
	// update endpoints succeeds.
	AfterRefresh func(ctx context.Context)
}

// Server serves the homepage, the JSON API and the calendar feed.
type Server struct {
	cfg  *config.Config
	deps Deps
	mux  *http.ServeMux
	now  func() time.Time

	// bg outlives requests; refreshes started by the update endpoints use it.
	bg context.Context
	wg sync.WaitGroup
}

// embeddedStatic holds robots.txt, humans.txt and the stylesheet.
//
//go:embed all:static
var embeddedStatic embed.FS

//go:embed templates/index.html
var embeddedTemplates embed.FS

var homeTemplate = template.Must(template.ParseFS(embeddedTemplates, "templates/index.html"))

// NewServer constructs a new Server. bg is used for background refreshes.
func NewServer(bg context.Context, cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
		now:  time.Now,
		bg:   bg,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return logRequests(gzipMiddleware(s.mux))
}

// Wait blocks until background refreshes started by the update endpoints
// have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.Wait()
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	s.mux.HandleFunc("GET /check", s.handleCheckRedirect)
	s.mux.HandleFunc("GET /cal", s.handleCalendar)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	s.mux.HandleFunc("GET /api/v1/events", cors(s.handleEvents))
	s.mux.HandleFunc("GET /api/v1/check/{checkdate}", cors(s.handleCheck))
	s.mux.HandleFunc("GET /api/v1/repos", cors(s.handleRepos))
	s.mux.HandleFunc("GET /api/v1/repos/{language}", cors(s.handleReposByLanguage))
	s.mux.HandleFunc("GET /api/v1/podcasts", cors(s.handlePodcasts))

	s.mux.HandleFunc("POST /api/v1/events/update", s.handleUpdate("events", "Events feed updating...", s.deps.Events.Refresh))
	s.mux.HandleFunc("POST /api/v1/repos/update", s.handleUpdate("repos", "Updating the repos feed; sit tight!", s.deps.Repos.Refresh))

	static := s.staticFileServer()
	s.mux.Handle("GET /public/", http.StripPrefix("/public", static))
	s.mux.Handle("GET /robots.txt", static)
	s.mux.Handle("GET /humans.txt", static)

	// Everything else goes home.
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// homeData is what templates/index.html renders.
type homeData struct {
	Title         string
	City          string
	FormattedTime string
	Countdown     countdown.Countdown
	Repos         []model.Repo
	Events        []model.Event
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	cd, formatted := s.deps.Countdown.Current(s.now())
	data := homeData{
		Title:         s.cfg.CalendarTitle,
		City:          s.cfg.City,
		FormattedTime: formatted,
		Countdown:     cd,
		Repos:         s.deps.Repos.Top(homepageRepos),
		Events:        s.deps.Events.Upcoming(homepageEvents),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTemplate.Execute(w, data); err != nil {
		appLog.Error("failed to render homepage", err)
	}
}

func (s *Server) handleSitemap(w http.ResponseWriter, _ *http.Request) {
	body, err := sitemap.Build("https://"+s.cfg.Domain, []sitemap.URL{
		{Path: "/", ChangeFreq: "daily", Priority: 0.3},
	})
	if err != nil {
		appLog.Error("failed to build sitemap", err)
		writeError(w, http.StatusInternalServerError, "failed to build sitemap")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(body)
}

func (s *Server) handleCheckRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/#check", http.StatusFound)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Events.Feed())
}

// handleCheck lists the events on a given day so organisers can spot clashes.
//
// GET /api/v1/check/2024-03-05
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("checkdate")
	day, err := time.ParseInLocation(time.DateOnly, raw, timefmt.Zone(s.cfg.Offset()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "checkdate must be YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Events.Check(day))
}

func (s *Server) handleRepos(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Repos.Feed())
}

func (s *Server) handleReposByLanguage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Repos.ByLanguage(r.PathValue("language")))
}

// handlePodcasts passes the podcast API body through unchanged.
func (s *Server) handlePodcasts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	body, err := s.deps.Podcast.Raw(r.Context())
	if err != nil {
		appLog.Error("podcast API fetch failed", err)
		writeText(w, http.StatusServiceUnavailable, "We Build Live Error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(body)
}

// handleCalendar serves the events feed as iCalendar. The next live show is
// added when the podcast API answers; otherwise the calendar goes out
// without it.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var show *model.LiveShow
	next, err := s.deps.Podcast.NextLiveShow(r.Context())
	if err != nil {
		appLog.Warn("calendar served without live show", "error", err.Error())
	} else {
		show = &next
	}

	cal := calendar.Build(calendar.Options{
		Domain: s.cfg.Domain,
		Name:   s.cfg.CalendarTitle,
		City:   s.cfg.City,
		Now:    s.now(),
	}, s.deps.Events.Feed().Events, show)

	w.Header().Set("Content-Type", calendar.ContentType)
	_, _ = w.Write([]byte(cal.Serialize()))
}

// handleUpdate starts a background refresh when the request carries the
// configured secret. The response does not wait for the refresh.
func (s *Server) handleUpdate(name, okMsg string, refresh func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.secretMatches(r.FormValue("secret")) {
			appLog.Warn("update rejected", "feed", name, "remote", r.RemoteAddr)
			writeText(w, http.StatusServiceUnavailable, "Incorrect secret key")
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := refresh(s.bg); err != nil {
				appLog.Error("triggered refresh failed", err, "feed", name)
				return
			}
			appLog.Info("triggered refresh done", "feed", name)
			if s.deps.AfterRefresh != nil {
				s.deps.AfterRefresh(s.bg)
			}
		}()
		writeText(w, http.StatusOK, okMsg)
	}
}

// secretMatches rejects everything while no secret is configured.
func (s *Server) secretMatches(got string) bool {
	if s.cfg.APISecret == "" {
		return false
	}
	return secureCompare(got, s.cfg.APISecret)
}

// handlePreview serves the last homepage capture from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg.PreviewPath == "" {
		http.NotFound(w, r)
		return
	}
	// http.ServeFile maps missing files to 404 and other errors to 500.
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

// staticFileServer serves the embedded files under internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static files not available", http.StatusServiceUnavailable)
		})
	}
	return http.FileServer(http.FS(sub))
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

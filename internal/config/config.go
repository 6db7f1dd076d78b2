package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"webuild/internal/timefmt"
)

// ErrEmptyPath is returned by Load and Save when no path is given.
var ErrEmptyPath = errors.New("config path is empty")

// GroupSource describes one group calendar published as ICS.
type GroupSource struct {
	// ID names the group in logs and event ids; defaults to Name.
	ID string `yaml:"id" json:"id"`
	// Name is the group name shown next to each event.
	Name string `yaml:"name" json:"name"`
	// URL serves the group's iCalendar feed.
	URL string `yaml:"url" json:"url"`
	// GroupURL is the group's homepage, used when an event has no URL.
	GroupURL string `yaml:"group_url" json:"group_url"`
}

// EventsConfig controls the events feed.
type EventsConfig struct {
	// HorizonDays is how far ahead recurring events are expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// Blacklist drops events from groups whose ID or name is listed.
	Blacklist []string      `yaml:"blacklist" json:"blacklist"`
	Sources   []GroupSource `yaml:"sources" json:"sources"`
}

// ReposConfig controls the GitHub repositories feed.
type ReposConfig struct {
	APIURL string `yaml:"api_url" json:"api_url"`
	// Token is normally supplied through GITHUB_TOKEN.
	Token string `yaml:"token,omitempty" json:"-"`
	// Location is the GitHub user search location; defaults to City.
	Location string `yaml:"location" json:"location"`
	MaxUsers int    `yaml:"max_users" json:"max_users"`
	MaxRepos int    `yaml:"max_repos" json:"max_repos"`
	// MaxDays drops repos not pushed to within this many days.
	MaxDays  int `yaml:"max_days" json:"max_days"`
	MinStars int `yaml:"min_stars" json:"min_stars"`
}

// Config is the webuild configuration file.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Domain is the public host name used for the sitemap and calendar.
	Domain string `yaml:"domain" json:"domain"`

	// City is reported in feed metadata and used as the fallback location.
	City string `yaml:"city" json:"city"`

	APIVersion    string `yaml:"api_version" json:"api_version"`
	CalendarTitle string `yaml:"calendar_title" json:"calendar_title"`

	// TimezoneOffset is a fixed UTC offset such as "+08:00". It is a raw
	// shift, not an IANA zone.
	TimezoneOffset string `yaml:"timezone_offset" json:"timezone_offset"`

	// DisplayTimeFormat is a Go reference layout or a strftime pattern.
	DisplayTimeFormat string `yaml:"display_time_format" json:"display_time_format"`

	// RefreshCron is a cron schedule for refreshing all feeds. Empty disables
	// scheduled refresh; the update endpoints still work.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// APISecret guards the update endpoints. Normally supplied through
	// WEBUILD_API_SECRET.
	APISecret string `yaml:"api_secret,omitempty" json:"-"`

	PodcastAPIURL string `yaml:"podcast_api_url" json:"podcast_api_url"`

	// PreviewPath, if set, is where a PNG capture of the homepage is written
	// after each refresh and served from /preview.png.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	Events EventsConfig `yaml:"events" json:"events"`
	Repos  ReposConfig  `yaml:"repos" json:"repos"`

	offset    int
	offsetErr error
}

// envOverrides are read from the process environment and win over the file.
type envOverrides struct {
	Port        string `env:"PORT"`
	APISecret   string `env:"WEBUILD_API_SECRET"`
	GitHubToken string `env:"GITHUB_TOKEN"`
	LogLevel    string `env:"WEBUILD_LOG_LEVEL"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	c := &Config{
		Listen:            "127.0.0.1:3000",
		Domain:            "webuild.sg",
		City:              "Singapore",
		APIVersion:        "v1",
		CalendarTitle:     "We Build SG Events",
		TimezoneOffset:    "+08:00",
		DisplayTimeFormat: "02 Jan 2006, Mon, 3:04 pm",
		RefreshCron:       "0 */2 * * *",
		LogLevel:          "info",
		PodcastAPIURL:     "https://live.webuild.sg/api/v1/podcasts.json",
		Events: EventsConfig{
			HorizonDays: 60,
			Blacklist:   []string{},
			Sources:     []GroupSource{},
		},
		Repos: ReposConfig{
			APIURL:   "https://api.github.com",
			MaxUsers: 1000,
			MaxRepos: 50,
			MaxDays:  90,
			MinStars: 0,
		},
	}
	c.Normalize()
	return c
}

// Normalize fills zero fields with defaults and parses TimezoneOffset.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3000"
	}
	if c.Domain == "" {
		c.Domain = "webuild.sg"
	}
	if c.City == "" {
		c.City = "Singapore"
	}
	if c.APIVersion == "" {
		c.APIVersion = "v1"
	}
	if c.CalendarTitle == "" {
		c.CalendarTitle = "We Build SG Events"
	}
	if c.TimezoneOffset == "" {
		c.TimezoneOffset = "+08:00"
	}
	off, err := timefmt.ParseOffset(c.TimezoneOffset)
	c.offsetErr = nil
	if err != nil {
		// Unparseable offset; UTC until the caller reports offsetErr.
		c.offsetErr = fmt.Errorf("timezone_offset %q: %w", c.TimezoneOffset, err)
		c.TimezoneOffset = "+00:00"
		off = 0
	}
	c.offset = off
	if c.DisplayTimeFormat == "" {
		c.DisplayTimeFormat = "02 Jan 2006, Mon, 3:04 pm"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Events.HorizonDays <= 0 {
		c.Events.HorizonDays = 60
	}
	if c.Events.Blacklist == nil {
		c.Events.Blacklist = []string{}
	}
	if c.Events.Sources == nil {
		c.Events.Sources = []GroupSource{}
	}

	if c.Repos.APIURL == "" {
		c.Repos.APIURL = "https://api.github.com"
	}
	if c.Repos.Location == "" {
		c.Repos.Location = c.City
	}
	if c.Repos.MaxUsers <= 0 {
		c.Repos.MaxUsers = 1000
	}
	if c.Repos.MaxRepos <= 0 {
		c.Repos.MaxRepos = 50
	}
	if c.Repos.MaxDays <= 0 {
		c.Repos.MaxDays = 90
	}
	if c.Repos.MinStars < 0 {
		c.Repos.MinStars = 0
	}
}

// Offset is the parsed TimezoneOffset in the hours/minutes convention of
// package timefmt.
func (c *Config) Offset() int {
	return c.offset
}

// ApplyEnv overlays environment overrides. PORT keeps the listen host and
// replaces only the port.
func (c *Config) ApplyEnv() error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if e.Port != "" {
		host, _, err := net.SplitHostPort(c.Listen)
		if err != nil {
			host = ""
		}
		c.Listen = host + ":" + e.Port
	}
	if e.APISecret != "" {
		c.APISecret = e.APISecret
	}
	if e.GitHubToken != "" {
		c.Repos.Token = e.GitHubToken
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	return nil
}

// Load reads the YAML file at path, fills defaults and applies environment
// overrides. An unparseable timezone_offset is an error. A missing file is created with the defaults (0600) and the
// defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// cfg is still usable; the caller decides whether to stop.
				return cfg, err
			}
			return cfg, cfg.ApplyEnv()
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if cfg.offsetErr != nil {
		return nil, fmt.Errorf("config: %s: %w", path, cfg.offsetErr)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save normalizes cfg and writes it as YAML through a temp file and rename,
// leaving the file at 0600 in a 0700 directory.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".webuild-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

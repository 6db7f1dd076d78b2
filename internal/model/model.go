package model

import "time"

// Event is one concrete event occurrence as published in the events feed.
type Event struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	URL         string `json:"url"`

	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	GroupURL  string `json:"group_url"`

	// FormattedTime is StartTime rendered in the configured display offset.
	FormattedTime string `json:"formatted_time"`
	UnixStartTime int64  `json:"unix_start_time"`

	// StartTime / EndTime are RFC3339 in the configured display offset.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Platform names where the event came from, e.g. "ics".
	Platform string `json:"platform"`
}

// Owner is the GitHub account owning a repository.
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// Repo is one repository in the repos feed.
type Repo struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	HTMLURL       string    `json:"html_url"`
	Owner         Owner     `json:"owner"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	PushedAt      time.Time `json:"pushed_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	FormattedTime string    `json:"formatted_time"`
}

// FeedMeta is the metadata block shared by the JSON feeds. Counters that do
// not apply to a feed are omitted.
type FeedMeta struct {
	GeneratedAt string `json:"generated_at"`
	Location    string `json:"location"`
	APIVersion  string `json:"api_version"`
	TotalEvents *int   `json:"total_events,omitempty"`
	TotalRepos  *int   `json:"total_repos,omitempty"`
	MaxRepos    *int   `json:"max_repos,omitempty"`
}

// EventsFeed is the body of /api/v1/events.
type EventsFeed struct {
	Meta   FeedMeta `json:"meta"`
	Events []Event  `json:"events"`
}

// ReposFeed is the body of /api/v1/repos.
type ReposFeed struct {
	Meta  FeedMeta `json:"meta"`
	Repos []Repo   `json:"repos"`
}

// LiveShow is the next scheduled live podcast recording.
type LiveShow struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// IntPtr is a small helper for the optional FeedMeta counters.
func IntPtr(n int) *int {
	return &n
}

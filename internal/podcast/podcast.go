// Package podcast reads the live podcast API.
package podcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"webuild/internal/model"
	"webuild/internal/timefmt"
)

// ErrNoLiveShow is returned when the API does not announce a next show.
var ErrNoLiveShow = errors.New("podcast: no upcoming live show")

const maxBodyBytes = 4 << 20

// apiResponse is the subset of the podcast API we read. Times are strings
// upstream and are parsed leniently.
type apiResponse struct {
	Meta struct {
		NextLiveShow *struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			URL         string `json:"url"`
			StartTime   string `json:"start_time"`
			EndTime     string `json:"end_time"`
		} `json:"next_live_show"`
	} `json:"meta"`
}

// Client fetches the podcast API.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a podcast client for apiURL. A nil httpClient gets a
// default one with a 10s timeout.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{url: apiURL, http: httpClient}
}

// Raw returns the API body unchanged.
func (c *Client) Raw(ctx context.Context) ([]byte, error) {
	if c.url == "" {
		return nil, errors.New("podcast: API URL is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("podcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("podcast: unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// NextLiveShow returns meta.next_live_show from the API.
func (c *Client) NextLiveShow(ctx context.Context) (model.LiveShow, error) {
	body, err := c.Raw(ctx)
	if err != nil {
		return model.LiveShow{}, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.LiveShow{}, fmt.Errorf("podcast: decode: %w", err)
	}
	next := resp.Meta.NextLiveShow
	if next == nil || next.StartTime == "" {
		return model.LiveShow{}, ErrNoLiveShow
	}

	start, err := timefmt.ParseTime(next.StartTime)
	if err != nil {
		return model.LiveShow{}, fmt.Errorf("podcast: start_time: %w", err)
	}
	end := start
	if next.EndTime != "" {
		if end, err = timefmt.ParseTime(next.EndTime); err != nil {
			return model.LiveShow{}, fmt.Errorf("podcast: end_time: %w", err)
		}
	}

	return model.LiveShow{
		Summary:     next.Summary,
		Description: next.Description,
		URL:         next.URL,
		StartTime:   start,
		EndTime:     end,
	}, nil
}

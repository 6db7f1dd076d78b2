package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	searchPageSize = 100
	// GitHub search never returns more than 1000 results.
	searchMaxResults = 1000
)

// ghOwner / ghRepo mirror the subset of the GitHub REST payload we read.
type ghOwner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

type ghRepo struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description *string   `json:"description"`
	Language    *string   `json:"language"`
	HTMLURL     string    `json:"html_url"`
	Fork        bool      `json:"fork"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	PushedAt    time.Time `json:"pushed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Owner       ghOwner   `json:"owner"`
}

type searchUsersResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Login string `json:"login"`
	} `json:"items"`
}

// Client talks to the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a GitHub client. A nil httpClient gets a default one
// with a 20s timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// SearchUsers returns up to max logins of users whose profile location
// matches location.
func (c *Client) SearchUsers(ctx context.Context, location string, max int) ([]string, error) {
	if max > searchMaxResults {
		max = searchMaxResults
	}
	logins := make([]string, 0, max)

	for page := 1; len(logins) < max; page++ {
		q := url.Values{}
		q.Set("q", fmt.Sprintf("location:%q", location))
		q.Set("per_page", strconv.Itoa(searchPageSize))
		q.Set("page", strconv.Itoa(page))

		var resp searchUsersResponse
		if err := c.getJSON(ctx, "/search/users?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("search users page %d: %w", page, err)
		}
		for _, it := range resp.Items {
			if len(logins) == max {
				break
			}
			logins = append(logins, it.Login)
		}
		if len(resp.Items) < searchPageSize || page*searchPageSize >= resp.TotalCount {
			break
		}
	}
	return logins, nil
}

// UserRepos returns the most recently pushed public repos of login.
func (c *Client) UserRepos(ctx context.Context, login string) ([]ghRepo, error) {
	q := url.Values{}
	q.Set("per_page", "100")
	q.Set("sort", "pushed")
	q.Set("type", "owner")

	var out []ghRepo
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(login)+"/repos?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("repos of %s: %w", login, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "webuild")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("github: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

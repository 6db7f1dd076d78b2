package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"webuild/internal/async"
	appLog "webuild/internal/log"
)

// maxBodyBytes bounds a single ICS download.
const maxBodyBytes = 8 << 20

// Source represents a single group calendar published as ICS.
type Source struct {
	// ID is an internal identifier (e.g., config source ID).
	ID string
	// Name is the group name.
	Name string
	// URL is the ICS endpoint.
	URL string
	// GroupURL is the group homepage.
	GroupURL string
}

// FetchResult contains the body fetched for a single source.
type FetchResult struct {
	Source Source
	Body   []byte
}

// Fetcher downloads ICS feeds. It keeps no state between calls.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a new ICS Fetcher. A nil client gets a default one
// with a 15s timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
		}
	}
	return &Fetcher{client: client}
}

// FetchAll starts one fetch per source and waits for all of them. The
// results are index-aligned with sources; failed sources carry their error
// in the slot. The error return is non-nil only when every source failed.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]async.Result[FetchResult], error) {
	futures := make([]*async.Future[FetchResult], len(sources))
	for i, src := range sources {
		futures[i] = async.Go(func() (FetchResult, error) {
			body, err := f.FetchOne(ctx, src)
			if err != nil {
				appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
				return FetchResult{Source: src}, err
			}
			return FetchResult{Source: src, Body: body}, nil
		})
	}
	return async.WaitAll(futures)
}

// FetchOne fetches a single ICS source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return nil, errors.New("source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: %s: unexpected status %s", src.ID, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
	return body, nil
}

// redactURL keeps only scheme and host of a calendar URL for logging;
// private calendar links carry tokens in the path or query.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}

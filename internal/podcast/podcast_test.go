package podcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveShowJSON = `{
  "meta": {
    "next_live_show": {
      "summary": "We Build LIVE",
      "description": "Episode 42",
      "url": "https://live.example.com/42",
      "start_time": "2024-03-09T11:00:00Z",
      "end_time": "2024-03-09T12:00:00Z"
    }
  },
  "podcasts": []
}`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNextLiveShow(t *testing.T) {
	srv := serve(t, http.StatusOK, liveShowJSON)
	c := NewClient(srv.URL, srv.Client())

	show, err := c.NextLiveShow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "We Build LIVE", show.Summary)
	assert.Equal(t, "Episode 42", show.Description)
	assert.Equal(t, "https://live.example.com/42", show.URL)
	assert.True(t, show.StartTime.Equal(time.Date(2024, 3, 9, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, show.EndTime.Sub(show.StartTime))
}

func TestNextLiveShowMissing(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"meta":{}}`)
	_, err := NewClient(srv.URL, srv.Client()).NextLiveShow(context.Background())
	assert.ErrorIs(t, err, ErrNoLiveShow)
}

func TestNextLiveShowBadJSON(t *testing.T) {
	srv := serve(t, http.StatusOK, `not json`)
	_, err := NewClient(srv.URL, srv.Client()).NextLiveShow(context.Background())
	assert.Error(t, err)
}

func TestRaw(t *testing.T) {
	srv := serve(t, http.StatusOK, liveShowJSON)
	body, err := NewClient(srv.URL, srv.Client()).Raw(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, liveShowJSON, string(body))

	down := serve(t, http.StatusServiceUnavailable, "")
	_, err = NewClient(down.URL, down.Client()).Raw(context.Background())
	assert.Error(t, err)

	_, err = NewClient("", nil).Raw(context.Background())
	assert.Error(t, err)
}

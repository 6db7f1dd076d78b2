package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendarBody(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//webuild//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

var sampleCalendar = calendarBody(
	"BEGIN:VEVENT",
	"UID:go-night@example.com",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240305T110000Z",
	"DTEND:20240305T130000Z",
	"SUMMARY:Go Night",
	`DESCRIPTION:<p>Talks\, pizza</p>`,
	"LOCATION:Level 3",
	"URL:https://example.com/go-night",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly@example.com",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240301T100000Z",
	"DTEND:20240301T110000Z",
	"RRULE:FREQ=WEEKLY;COUNT=4",
	"EXDATE:20240308T100000Z",
	"SUMMARY:Weekly Hack",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly@example.com",
	"DTSTAMP:20240101T000000Z",
	"RECURRENCE-ID:20240315T100000Z",
	"DTSTART:20240315T120000Z",
	"DTEND:20240315T130000Z",
	"SUMMARY:Weekly Hack (moved)",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240310T100000Z",
	"SUMMARY:No UID",
	"END:VEVENT",
)

var testSource = Source{ID: "gophers", Name: "Gophers", URL: "https://example.com/g.ics", GroupURL: "https://example.com"}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(testSource, sampleCalendar)
	require.NoError(t, err)
	require.Len(t, events, 3, "the event without UID is skipped")

	ev := events[0]
	assert.Equal(t, "go-night@example.com", ev.UID)
	assert.Equal(t, "Go Night", ev.Summary)
	assert.Equal(t, "<p>Talks, pizza</p>", ev.Description)
	assert.Equal(t, "Level 3", ev.Location)
	assert.Equal(t, "https://example.com/go-night", ev.URL)
	assert.Equal(t, testSource, ev.Source)
	assert.True(t, ev.Start.Equal(time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)))
	assert.True(t, ev.End.Equal(time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC)))
	assert.False(t, ev.AllDay)

	weekly := events[1]
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", weekly.RawRRule)
	require.Len(t, weekly.ExDates, 1)
	assert.True(t, weekly.ExDates[0].Equal(time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)))

	override := events[2]
	assert.True(t, override.IsOverride)
	require.NotNil(t, override.Recurrence)
}

func TestParseICSUnescapesTextOnce(t *testing.T) {
	body := calendarBody(
		"BEGIN:VEVENT",
		"UID:escapes@example.com",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240305T110000Z",
		`SUMMARY:Go\, Rust\; and more`,
		`DESCRIPTION:see C:\\new\, ok`,
		`LOCATION:Room 1\; Level 3`,
		"END:VEVENT",
	)
	events, err := ParseICS(testSource, body)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "Go, Rust; and more", events[0].Summary)
	assert.Equal(t, `see C:\new, ok`, events[0].Description, "an escaped backslash stays a backslash")
	assert.Equal(t, "Room 1; Level 3", events[0].Location)
}

func TestParseICSEmpty(t *testing.T) {
	_, err := ParseICS(testSource, nil)
	assert.Error(t, err)
}

func TestExpandOccurrences(t *testing.T) {
	events, err := ParseICS(testSource, sampleCalendar)
	require.NoError(t, err)

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedEvents)

	var got []string
	for _, occ := range res.Occurrences {
		got = append(got, occ.Start.UTC().Format("01-02 15:04")+" "+occ.Event.Summary)
	}
	assert.Equal(t, []string{
		"03-01 10:00 Weekly Hack",
		"03-05 11:00 Go Night",
		"03-15 12:00 Weekly Hack (moved)",
		"03-22 10:00 Weekly Hack",
	}, got)
}

func TestExpandOccurrencesRange(t *testing.T) {
	events, err := ParseICS(testSource, sampleCalendar)
	require.NoError(t, err)

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "weekly@example.com@20240322T100000Z", res.Occurrences[0].InstanceKey)

	_, err = ExpandOccurrences(events, ExpandConfig{
		RangeStart: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestExpandOccurrencesCap(t *testing.T) {
	body := calendarBody(
		"BEGIN:VEVENT",
		"UID:daily@example.com",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240101T090000Z",
		"DTEND:20240101T100000Z",
		"RRULE:FREQ=DAILY",
		"SUMMARY:Standup",
		"END:VEVENT",
	)
	events, err := ParseICS(testSource, body)
	require.NoError(t, err)

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 10,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 10)
	assert.Equal(t, []string{"daily@example.com"}, res.TruncatedEvents)
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.ics":
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = w.Write(sampleCalendar)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	sources := []Source{
		{ID: "missing", URL: srv.URL + "/missing.ics"},
		{ID: "ok", URL: srv.URL + "/ok.ics"},
		{ID: "empty"},
	}

	results, err := f.FetchAll(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Failed())
	assert.Contains(t, results[0].Err.Error(), "404")
	assert.False(t, results[1].Failed())
	assert.Equal(t, "ok", results[1].Value.Source.ID)
	assert.Equal(t, sampleCalendar, results[1].Value.Body)
	assert.True(t, results[2].Failed())
}

func TestFetchAllEverySourceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.ics" {
			time.Sleep(20 * time.Millisecond)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	_, err := f.FetchAll(context.Background(), []Source{
		{ID: "slow", URL: srv.URL + "/slow.ics"},
		{ID: "fast", URL: srv.URL + "/fast.ics"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow", "the error is the one from the first source")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}

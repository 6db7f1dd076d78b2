// Package calendar renders the events feed as an iCalendar document.
package calendar

import (
	"crypto/sha1"
	"encoding/hex"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "webuild/internal/log"
	"webuild/internal/model"
)

// ContentType is the media type of Serialize output.
const ContentType = "text/calendar; charset=utf-8"

// Options describe the calendar being built.
type Options struct {
	// Domain is used in the PRODID and in event UIDs.
	Domain string
	// Name is the calendar display name.
	Name string
	// City is the location used when an event has none.
	City string
	// Now stamps DTSTAMP on every event.
	Now time.Time
}

// Build creates a calendar holding every complete event plus, if show is
// non-nil, the next live show. Events without a start, end, name or
// description are logged and left out.
func Build(opts Options, events []model.Event, show *model.LiveShow) *ical.Calendar {
	cal := ical.NewCalendarFor(opts.Domain)
	cal.SetMethod(ical.MethodPublish)
	cal.SetName(opts.Name)
	cal.SetXWRCalName(opts.Name)

	skipped := 0
	for _, ev := range events {
		if ev.StartTime.IsZero() || ev.EndTime.IsZero() || ev.Name == "" || ev.Description == "" {
			skipped++
			appLog.Debug("calendar: not enough information on event",
				"name", ev.Name,
				"start", ev.StartTime,
				"end", ev.EndTime,
			)
			continue
		}

		url := ev.URL
		if url == "" {
			url = ev.GroupURL
		}
		location := ev.Location
		if location == "" {
			location = opts.City
		}

		addEvent(cal, opts, eventUID(ev.ID, opts.Domain), entry{
			start:       ev.StartTime,
			end:         ev.EndTime,
			summary:     ev.Name + " by " + ev.GroupName,
			description: ev.Description + " \n\nEvent URL: " + url,
			location:    location,
			url:         url,
		})
	}

	if show != nil && !show.StartTime.IsZero() {
		addEvent(cal, opts, eventUID("live-"+show.StartTime.UTC().Format("20060102T150405Z"), opts.Domain), entry{
			start:       show.StartTime,
			end:         show.EndTime,
			summary:     show.Summary,
			description: show.Description + " \n\nEvent URL: " + show.URL,
			location:    opts.City,
			url:         show.URL,
		})
	}

	if skipped > 0 {
		appLog.Info("calendar built with incomplete events skipped", "skipped", skipped, "events", len(events)-skipped)
	}
	return cal
}

type entry struct {
	start, end    time.Time
	summary       string
	description   string
	location, url string
}

func addEvent(cal *ical.Calendar, opts Options, uid string, e entry) {
	ve := cal.AddEvent(uid)
	ve.SetDtStampTime(opts.Now.UTC())
	ve.SetStartAt(e.start.UTC())
	ve.SetEndAt(e.end.UTC())
	ve.SetSummary(e.summary)
	ve.SetDescription(e.description)
	ve.SetLocation(e.location)
	if e.url != "" {
		ve.SetURL(e.url)
	}
}

// eventUID derives a stable UID; feed IDs may contain characters that some
// calendar clients reject.
func eventUID(id, domain string) string {
	sum := sha1.Sum([]byte(id))
	return hex.EncodeToString(sum[:10]) + "@" + domain
}

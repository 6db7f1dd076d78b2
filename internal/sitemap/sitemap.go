// Package sitemap renders sitemaps.org urlset documents.
package sitemap

import (
	"encoding/xml"
	"errors"
	"strconv"
	"strings"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// URL is one sitemap entry. Path is joined to the hostname.
type URL struct {
	Path       string
	ChangeFreq string
	Priority   float64
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []urlXML `xml:"url"`
}

type urlXML struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Build renders the sitemap for hostname, e.g. "https://webuild.sg".
func Build(hostname string, urls []URL) ([]byte, error) {
	hostname = strings.TrimRight(hostname, "/")
	if hostname == "" {
		return nil, errors.New("sitemap: hostname is empty")
	}

	set := urlset{Xmlns: xmlns, URLs: make([]urlXML, 0, len(urls))}
	for _, u := range urls {
		path := u.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		entry := urlXML{Loc: hostname + path, ChangeFreq: u.ChangeFreq}
		if u.Priority > 0 {
			entry.Priority = strconv.FormatFloat(u.Priority, 'f', 1, 64)
		}
		set.URLs = append(set.URLs, entry)
	}

	body, err := xml.Marshal(set)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

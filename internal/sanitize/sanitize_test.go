package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"bold", "<b>hi</b>", "hi"},
		{"plain", "no tags here", "no tags here"},
		{"inline", "a <i>b</i> c", "a b c"},
		{"attributes", `<a href="https://example.com" class="x">link</a> after`, "link after"},
		{"paragraphs", "<p>line</p>\n<p>two</p>", "line\ntwo"},
		{"self closing", "one<br/>two", "onetwo"},
		{"comment", "<!-- hidden -->shown", "shown"},
		{"entities untouched", "Tom &amp; Jerry", "Tom &amp; Jerry"},
		{"bare less-than", "1 < 2", "1 < 2"},
		{"only tags", "<div><span></span></div>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkup(tt.in))
		})
	}
}

func TestStripMarkupPtr(t *testing.T) {
	assert.Equal(t, "", StripMarkupPtr(nil))

	empty := ""
	assert.Equal(t, "", StripMarkupPtr(&empty))

	s := "<b>hi</b>"
	assert.Equal(t, "hi", StripMarkupPtr(&s))
}

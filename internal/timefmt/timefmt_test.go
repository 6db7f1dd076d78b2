package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = time.Date(2024, time.March, 9, 18, 30, 0, 0, time.UTC)

func TestOffsetMinutes(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 0},
		{8, 480},
		{-5, -300},
		{15, 900},
		{-15, -900},
		{16, 16},
		{480, 480},
		{-330, -330},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OffsetMinutes(tt.in), "offset %d", tt.in)
	}
}

func TestLocalTime(t *testing.T) {
	lt := LocalTime(sample, 8)
	assert.True(t, lt.Equal(sample), "instant must not move")
	assert.Equal(t, 2, lt.Hour())
	assert.Equal(t, 10, lt.Day())

	_, off := lt.Zone()
	assert.Equal(t, 8*3600, off)

	// hours and minutes spellings are the same zone
	assert.Equal(t, LocalTime(sample, 480), LocalTime(sample, 8))
}

func TestLocalTimeInputZoneIgnored(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)
	in := sample.In(ny)
	assert.Equal(t, LocalTime(sample, 0), LocalTime(in, 0))
}

func TestLocalTimeIdempotent(t *testing.T) {
	once := LocalTime(sample, 0)
	twice := LocalTime(once, 0)
	assert.True(t, once.Equal(twice))
	assert.Equal(t, once, twice)
}

func TestFormatLocalTime(t *testing.T) {
	tests := []struct {
		name    string
		offset  int
		pattern string
		want    string
	}{
		{"go layout", 8, "Mon, 2 Jan 2006, 3:04 pm", "Sun, 10 Mar 2024, 2:30 am"},
		{"go layout utc", 0, "2006-01-02 15:04", "2024-03-09 18:30"},
		{"strftime", 8, "%Y-%m-%d %H:%M:%S", "2024-03-10 02:30:00"},
		{"negative minutes", -330, "15:04 -07:00", "13:00 -05:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLocalTime(sample, tt.offset, tt.pattern))
		})
	}
}

func TestFormatLocalTimePure(t *testing.T) {
	const pattern = "%d %b %Y %H:%M"
	first := FormatLocalTime(sample, 8, pattern)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, FormatLocalTime(sample, 8, pattern))
	}
	assert.NotEqual(t, first, FormatLocalTime(sample, 9, pattern))
	assert.NotEqual(t, first, FormatLocalTime(sample.Add(time.Hour), 8, pattern))
	assert.NotEqual(t, first, FormatLocalTime(sample, 8, "%Y"))
}

func TestParseOffset(t *testing.T) {
	good := map[string]int{
		"+08:00": 480,
		"+0800":  480,
		"-05:30": -330,
		"8":      8,
		"-5":     -5,
		"480":    480,
		"+00:00": 0,
	}
	for in, want := range good {
		got, err := ParseOffset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "abc", "+8:0", "+25:00", "+00:10"} {
		_, err := ParseOffset(in)
		assert.Error(t, err, in)
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2024-03-09T18:30:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(sample))

	got, err = ParseTime("2024-03-10T02:30:00+08:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(sample))

	got, err = ParseTime("2024-03-09T18:30:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(sample))

	got, err = ParseTime("2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Day())

	_, err = ParseTime("next tuesday")
	assert.Error(t, err)
}

package views

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eringen/podsite/content"
)

// podcastDateLayout matches the RFC 1123 form podcast clients expect.
const podcastDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// PodcastDate formats t for RSS pubDate elements.
func PodcastDate(t time.Time) string {
	return t.UTC().Format(podcastDateLayout)
}

// HTMLDateString returns the YYYY-MM-DD form used in <time datetime>.
func HTMLDateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ReadableDate returns dates like "January 2, 2006".
func ReadableDate(t time.Time) string {
	return t.UTC().Format("January 2, 2006")
}

// FormatDuration renders seconds as m:ss. Zero renders as 00:00.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "00:00"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// AbsoluteURL resolves p against base. Without a base p is returned as is.
func AbsoluteURL(p, base string) string {
	if base == "" {
		return p
	}
	b, err := url.Parse(base)
	if err != nil {
		return p
	}
	ref, err := url.Parse(p)
	if err != nil {
		return p
	}
	return b.ResolveReference(ref).String()
}

// EpisodeAudioURL resolves an episode audio reference against the
// configured media base. Absolute references are returned unchanged.
func EpisodeAudioURL(ref, base string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return AbsoluteURL(ref, base)
}

// Slugify converts a string to a URL-safe slug.
func Slugify(s string) string {
	return content.Slugify(s)
}

// PadStart left-pads s with pad until it is length runes long. The padding
// is truncated to fit; s itself is never shortened.
func PadStart(s string, length int, pad string) string {
	n := utf8.RuneCountInString(s)
	if n >= length {
		return s
	}
	if pad == "" {
		pad = " "
	}
	fill := []rune(strings.Repeat(pad, (length-n)/utf8.RuneCountInString(pad)+1))
	return string(fill[:length-n]) + s
}

// EpisodeNumber formats n as a zero padded three digit label.
func EpisodeNumber(n int) string {
	return PadStart(fmt.Sprint(n), 3, "0")
}

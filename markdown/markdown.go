// Package markdown renders episode bodies to HTML.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ImageFunc renders an {% image %} shortcode to HTML.
type ImageFunc func(ctx context.Context, src, alt string, sizes ...string) (string, error)

var (
	reShortcode = regexp.MustCompile(`\{%-?\s*image\s+(.*?)\s*-?%\}`)
	// Placeholders are plain words so goldmark leaves them alone.
	reBlockPlaceholder = regexp.MustCompile(`<p>PODSITEIMAGE(\d+)X</p>`)
	rePlaceholder      = regexp.MustCompile(`PODSITEIMAGE(\d+)X`)
)

// Renderer converts markdown with goldmark and expands image shortcodes.
type Renderer struct {
	md     goldmark.Markdown
	images ImageFunc
}

// New returns a Renderer. images may be nil, in which case any image
// shortcode is an error.
func New(images ImageFunc) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithXHTML()),
	)
	return &Renderer{md: md, images: images}
}

// Render converts source to HTML. Shortcode errors are returned as-is, so a
// missing source or alt text fails the page.
func (r *Renderer) Render(ctx context.Context, source string) (string, error) {
	var fragments []string
	var expandErr error
	source = reShortcode.ReplaceAllStringFunc(source, func(m string) string {
		if expandErr != nil {
			return m
		}
		args, err := parseArgs(reShortcode.FindStringSubmatch(m)[1])
		if err != nil {
			expandErr = fmt.Errorf("image shortcode %s: %w", m, err)
			return m
		}
		if r.images == nil {
			expandErr = fmt.Errorf("image shortcode %s: no image renderer", m)
			return m
		}
		var src, alt string
		if len(args) > 0 {
			src = args[0]
		}
		if len(args) > 1 {
			alt = args[1]
		}
		out, err := r.images(ctx, src, alt, args[min(2, len(args)):]...)
		if err != nil {
			expandErr = err
			return m
		}
		fragments = append(fragments, out)
		return "PODSITEIMAGE" + strconv.Itoa(len(fragments)-1) + "X"
	})
	if expandErr != nil {
		return "", expandErr
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	out := buf.String()
	if len(fragments) > 0 {
		out = expandPlaceholders(out, reBlockPlaceholder, fragments)
		out = expandPlaceholders(out, rePlaceholder, fragments)
	}
	return out, nil
}

func expandPlaceholders(s string, re *regexp.Regexp, fragments []string) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		i, _ := strconv.Atoi(re.FindStringSubmatch(m)[1])
		if i < len(fragments) {
			return fragments[i]
		}
		return m
	})
}

// parseArgs splits `"a", 'b', "c"` into its unquoted values.
func parseArgs(s string) ([]string, error) {
	var args []string
	s = strings.TrimSpace(s)
	for s != "" {
		q := s[0]
		if q != '"' && q != '\'' {
			return nil, fmt.Errorf("expected quoted argument at %q", s)
		}
		end := 1
		for end < len(s) && s[end] != q {
			if s[end] == '\\' && q == '"' {
				end++
			}
			end++
		}
		if end >= len(s) {
			return nil, fmt.Errorf("unterminated argument %q", s)
		}
		raw := s[:end+1]
		val := raw[1 : len(raw)-1]
		if q == '"' {
			unq, err := strconv.Unquote(raw)
			if err != nil {
				return nil, err
			}
			val = unq
		}
		args = append(args, val)
		s = strings.TrimSpace(s[end+1:])
		if s == "" {
			break
		}
		if s[0] != ',' {
			return nil, fmt.Errorf("expected comma at %q", s)
		}
		s = strings.TrimSpace(s[1:])
	}
	return args, nil
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

// PlainText strips markdown syntax and tags from source, collapsing
// whitespace. Used for feed summaries.
func PlainText(source string) string {
	var buf bytes.Buffer
	md := goldmark.New()
	if err := md.Convert([]byte(reShortcode.ReplaceAllString(source, "")), &buf); err != nil {
		return strings.Join(strings.Fields(source), " ")
	}
	text := reTag.ReplaceAllString(buf.String(), "")
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

var reTag = regexp.MustCompile(`<[^>]*>`)

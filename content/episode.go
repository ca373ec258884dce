// Package content parses episode source files and assembles the published
// episode collection.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Audio references the media file of an episode.
type Audio struct {
	URL      string `yaml:"url" json:"url"`           // absolute URL or a filename under the episode URL base
	Duration int    `yaml:"duration" json:"duration"` // seconds
	Size     int64  `yaml:"size" json:"size,omitempty"`
	Type     string `yaml:"type" json:"type,omitempty"`
}

// Episode is one parsed content item. It is not modified after assembly.
type Episode struct {
	Number      int
	Title       string
	Description string
	Date        time.Time
	Draft       bool
	Audio       Audio
	Tags        []string
	Image       string
	ImageAlt    string

	Content    string // raw markdown body
	Slug       string
	URL        string // site-relative, with trailing slash
	SourcePath string
}

// frontmatter mirrors the YAML header of an episode file.
type frontmatter struct {
	Number      int        `yaml:"number"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Date        string     `yaml:"date"`
	Draft       bool       `yaml:"draft"`
	Audio       Audio      `yaml:"audio"`
	Tags        stringList `yaml:"tags"`
	Image       string     `yaml:"image"`
	ImageAlt    string     `yaml:"image_alt"`
}

const frontmatterDelimiter = "---"

// URLPrefix is the site path every episode page lives under.
const URLPrefix = "/episodes/"

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ErrNoFrontmatter is returned when a file does not open with a YAML header.
var ErrNoFrontmatter = errors.New("content does not start with frontmatter delimiter")

// Parse builds an Episode from raw file bytes. rel is the path below the
// episodes directory (slash separated) and determines the episode URL.
func Parse(sourcePath, rel string, raw []byte) (Episode, error) {
	fm, body, err := splitFrontmatter(raw)
	if err != nil {
		return Episode{}, fmt.Errorf("%s: %w", sourcePath, err)
	}

	var meta frontmatter
	if err := yaml.NewDecoder(bytes.NewReader(fm)).Decode(&meta); err != nil {
		return Episode{}, fmt.Errorf("%s: parsing YAML: %w", sourcePath, err)
	}

	if strings.TrimSpace(meta.Title) == "" {
		return Episode{}, fmt.Errorf("%s: frontmatter missing required field: title", sourcePath)
	}
	if meta.Number < 0 {
		return Episode{}, fmt.Errorf("%s: number must not be negative", sourcePath)
	}
	date, err := ParseDate(meta.Date)
	if err != nil {
		return Episode{}, fmt.Errorf("%s: %w", sourcePath, err)
	}

	slug := slugPath(rel)
	if slug == "" {
		return Episode{}, fmt.Errorf("%s: cannot derive a URL from %q", sourcePath, rel)
	}

	audio := meta.Audio
	audio.URL = strings.TrimSpace(audio.URL)
	if audio.Type == "" && audio.URL != "" {
		audio.Type = audioType(audio.URL)
	}

	return Episode{
		Number:      meta.Number,
		Title:       strings.TrimSpace(meta.Title),
		Description: strings.TrimSpace(meta.Description),
		Date:        date,
		Draft:       meta.Draft,
		Audio:       audio,
		Tags:        []string(meta.Tags),
		Image:       strings.TrimSpace(meta.Image),
		ImageAlt:    strings.TrimSpace(meta.ImageAlt),
		Content:     string(body),
		Slug:        slug,
		URL:         URLPrefix + slug + "/",
		SourcePath:  sourcePath,
	}, nil
}

// ParseDate accepts the date forms allowed in front matter and returns UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("frontmatter missing required field: date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// splitFrontmatter returns the YAML header and the remaining body.
func splitFrontmatter(raw []byte) ([]byte, []byte, error) {
	content := strings.TrimPrefix(string(raw), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, frontmatterDelimiter) {
		return nil, nil, ErrNoFrontmatter
	}
	rest := content[len(frontmatterDelimiter):]
	yamlContent, body, found := strings.Cut(rest, "\n"+frontmatterDelimiter)
	if !found {
		return nil, nil, errors.New("no closing frontmatter delimiter found")
	}
	yamlContent = strings.TrimPrefix(yamlContent, "\n")
	// Drop the remainder of the closing delimiter line.
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return []byte(yamlContent), []byte(body), nil
}

// slugPath turns "2024/My Episode.md" into "2024/my-episode".
func slugPath(rel string) string {
	rel = strings.TrimSuffix(path.Clean(strings.ReplaceAll(rel, "\\", "/")), path.Ext(rel))
	var parts []string
	for _, seg := range strings.Split(rel, "/") {
		if s := Slugify(seg); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

func audioType(u string) string {
	switch strings.ToLower(path.Ext(strings.SplitN(u, "?", 2)[0])) {
	case ".m4a":
		return "audio/x-m4a"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".aac":
		return "audio/aac"
	default:
		return "audio/mpeg"
	}
}

// Slugify converts a title to a URL-safe slug. Punctuation is dropped;
// runs of whitespace, underscores and hyphens become one hyphen.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// stringList accepts either a YAML sequence or a comma separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	switch value.Kind {
	case yaml.SequenceNode:
		if err := value.Decode(&raw); err != nil {
			return err
		}
	case yaml.ScalarNode:
		raw = strings.Split(value.Value, ",")
	default:
		return fmt.Errorf("tags: unsupported YAML node kind %d", value.Kind)
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	*l = out
	return nil
}

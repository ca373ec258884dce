package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/eringen/podsite/content"
)

func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// RelatedEpisodes returns episodes that share at least one tag with current.
func RelatedEpisodes(current content.Episode, episodes []content.Episode, limit int) []content.Episode {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		if tag := strings.ToLower(strings.TrimSpace(t)); tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []content.Episode
	for _, ep := range episodes {
		if ep.Slug == current.Slug {
			continue
		}
		for _, t := range ep.Tags {
			if _, ok := tagSet[strings.ToLower(strings.TrimSpace(t))]; ok {
				related = append(related, ep)
				break
			}
		}
		if limit > 0 && len(related) == limit {
			break
		}
	}
	return related
}

// JoinTags formats a tag slice as a comma-separated string.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// PodcastSeriesJsonLD produces a Schema.org PodcastSeries JSON-LD block.
func PodcastSeriesJsonLD(site Site) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "PodcastSeries",
		"name":     site.Name,
		"url":      buildURL(site.URL),
		"webFeed":  AbsoluteURL("/feed.xml", site.URL),
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	if site.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  site.Author,
		}
	}
	if site.CoverImage != "" {
		data["image"] = AbsoluteURL(site.CoverImage, site.URL)
	}
	return marshalJsonLD(data)
}

// PodcastEpisodeJsonLD produces a Schema.org PodcastEpisode JSON-LD block.
func PodcastEpisodeJsonLD(site Site, ep content.Episode, audioURL string) string {
	epURL := AbsoluteURL(ep.URL, site.URL)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "PodcastEpisode",
		"name":          ep.Title,
		"datePublished": HTMLDateString(ep.Date),
		"url":           epURL,
		"partOfSeries": map[string]string{
			"@type": "PodcastSeries",
			"name":  site.Name,
			"url":   buildURL(site.URL),
		},
	}
	if ep.Number > 0 {
		data["episodeNumber"] = ep.Number
	}
	if ep.Description != "" {
		data["description"] = ep.Description
	}
	if audioURL != "" {
		media := map[string]interface{}{
			"@type":      "AudioObject",
			"contentUrl": audioURL,
		}
		if ep.Audio.Duration > 0 {
			media["duration"] = isoDuration(ep.Audio.Duration)
		}
		data["associatedMedia"] = media
	}
	if len(ep.Tags) > 0 {
		data["keywords"] = strings.Join(ep.Tags, ", ")
	}
	return marshalJsonLD(data)
}

func marshalJsonLD(data map[string]interface{}) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// isoDuration renders seconds as an ISO 8601 duration such as PT30M5S.
func isoDuration(seconds int) string {
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		b.WriteString(strconv.Itoa(h) + "H")
	}
	if m > 0 {
		b.WriteString(strconv.Itoa(m) + "M")
	}
	if s > 0 || (h == 0 && m == 0) {
		b.WriteString(strconv.Itoa(s) + "S")
	}
	return b.String()
}

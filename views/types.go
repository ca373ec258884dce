package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/podsite/content"
)

// Site holds the site-wide settings every page template receives.
type Site struct {
	Name               string
	URL                string
	Description        string
	Author             string
	Language           string
	CoverImage         string // absolute or site-relative artwork URL
	EpisodeURLBase     string // base for relative audio references
	NewsletterEndpoint string // subscribe form target; empty hides the form
	Stylesheets        []string
	Script             string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}

// EpisodePage is everything the episode template needs beyond the episode.
type EpisodePage struct {
	Episode  content.Episode
	Body     templ.Component // rendered markdown
	Cover    string          // responsive picture markup, may be empty
	AudioURL string
	Newer    *content.Episode
	Older    *content.Episode
}

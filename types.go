package podsite

import (
	"github.com/a-h/templ"

	"github.com/eringen/podsite/content"
	"github.com/eringen/podsite/views"
)

// ViewFuncs holds the templ components the build renders pages with.
// Projects can replace any of them; nil entries fall back to the views
// package.
type ViewFuncs struct {
	Home         func(site views.Site, latest *views.EpisodePage, episodes []content.Episode) templ.Component
	EpisodeIndex func(site views.Site, episodes []content.Episode) templ.Component
	Episode      func(site views.Site, page views.EpisodePage) templ.Component
	NotFound     func(site views.Site) templ.Component
}

func (v *ViewFuncs) setDefaults() {
	if v.Home == nil {
		v.Home = views.Home
	}
	if v.EpisodeIndex == nil {
		v.EpisodeIndex = views.EpisodeIndex
	}
	if v.Episode == nil {
		v.Episode = views.Episode
	}
	if v.NotFound == nil {
		v.NotFound = views.NotFound
	}
}

// EpisodesJSON is the document written to api/episodes.json.
type EpisodesJSON struct {
	Episodes []EpisodeJSON `json:"episodes"`
}

// EpisodeJSON is one entry of api/episodes.json.
type EpisodeJSON struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	URL         string     `json:"url"`
	Audio       *AudioJSON `json:"audio,omitempty"`
	Tags        []string   `json:"tags"`
}

// AudioJSON is an episode's audio reference with its URL resolved.
type AudioJSON struct {
	URL      string `json:"url"`
	Duration int    `json:"duration"`
	Size     int64  `json:"size,omitempty"`
	Type     string `json:"type,omitempty"`
}

package podsite

import (
	"encoding/json"
	"encoding/xml"
	"time"

	"github.com/eringen/podsite/content"
	"github.com/eringen/podsite/views"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func buildSitemap(site SiteSection, episodes []content.Episode) sitemapURLSet {
	urls := []sitemapURL{
		{Loc: BuildURL(site.URL)},
		{Loc: BuildURL(site.URL, "episodes")},
	}
	if len(episodes) > 0 {
		urls[0].LastMod = views.HTMLDateString(episodes[0].Date)
		urls[1].LastMod = urls[0].LastMod
	}
	for _, ep := range episodes {
		urls = append(urls, sitemapURL{
			Loc:     views.AbsoluteURL(ep.URL, site.URL),
			LastMod: views.HTMLDateString(ep.Date),
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func writeSitemap(path string, site SiteSection, episodes []content.Episode) error {
	data, err := marshalXML(buildSitemap(site, episodes))
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// buildEpisodesJSON lists every published episode for api/episodes.json.
// Episodes without audio omit the audio object.
func buildEpisodesJSON(site SiteSection, episodes []content.Episode) EpisodesJSON {
	out := make([]EpisodeJSON, 0, len(episodes))
	for _, ep := range episodes {
		tags := FilterEmpty(ep.Tags)
		if tags == nil {
			tags = []string{}
		}
		item := EpisodeJSON{
			Number:      ep.Number,
			Title:       ep.Title,
			Description: ep.Description,
			Date:        ep.Date.UTC().Format(time.RFC3339),
			URL:         views.AbsoluteURL(ep.URL, site.URL),
			Tags:        tags,
		}
		if u := audioURL(site, ep); u != "" {
			item.Audio = &AudioJSON{
				URL:      u,
				Duration: ep.Audio.Duration,
				Size:     ep.Audio.Size,
				Type:     ep.Audio.Type,
			}
		}
		out = append(out, item)
	}
	return EpisodesJSON{Episodes: out}
}

func writeEpisodesJSON(path string, site SiteSection, episodes []content.Episode) error {
	data, err := json.MarshalIndent(buildEpisodesJSON(site, episodes), "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

package podsite

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"github.com/eringen/podsite/content"
	"github.com/eringen/podsite/markdown"
	"github.com/eringen/podsite/views"
)

const itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

type rssXML struct {
	XMLName     xml.Name   `xml:"rss"`
	Version     string     `xml:"version,attr"`
	XMLNSItunes string     `xml:"xmlns:itunes,attr"`
	XMLNSAtom   string     `xml:"xmlns:atom,attr"`
	Channel     rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string       `xml:"title"`
	Link          string       `xml:"link"`
	AtomLink      atomLink     `xml:"atom:link"`
	Description   string       `xml:"description"`
	Language      string       `xml:"language,omitempty"`
	LastBuildDate string       `xml:"lastBuildDate,omitempty"`
	Author        string       `xml:"itunes:author,omitempty"`
	Summary       string       `xml:"itunes:summary,omitempty"`
	Owner         *itunesOwner `xml:"itunes:owner,omitempty"`
	Image         *itunesImage `xml:"itunes:image,omitempty"`
	Category      *itunesCat   `xml:"itunes:category,omitempty"`
	Keywords      string       `xml:"itunes:keywords,omitempty"`
	Explicit      string       `xml:"itunes:explicit"`
	Items         []rssItem    `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type itunesOwner struct {
	Name  string `xml:"itunes:name,omitempty"`
	Email string `xml:"itunes:email,omitempty"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type itunesCat struct {
	Text string `xml:"text,attr"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	PubDate     string        `xml:"pubDate"`
	GUID        rssGUID       `xml:"guid"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	Duration    string        `xml:"itunes:duration,omitempty"`
	Episode     string        `xml:"itunes:episode,omitempty"`
	Image       *itunesImage  `xml:"itunes:image,omitempty"`
	Keywords    string        `xml:"itunes:keywords,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// audioURL resolves an episode's audio reference to an absolute URL.
func audioURL(site SiteSection, ep content.Episode) string {
	u := views.EpisodeAudioURL(ep.Audio.URL, site.EpisodeURLBase)
	if u == "" {
		return ""
	}
	return views.AbsoluteURL(u, site.URL)
}

func buildFeed(site SiteSection, c content.Collection) rssXML {
	episodes := c.Items()
	items := make([]rssItem, 0, len(episodes))
	for _, ep := range episodes {
		link := views.AbsoluteURL(ep.URL, site.URL)
		desc := ep.Description
		if desc == "" {
			desc = markdown.PlainText(ep.Content)
		}
		item := rssItem{
			Title:       ep.Title,
			Link:        link,
			Description: desc,
			PubDate:     views.PodcastDate(ep.Date),
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			Keywords:    views.JoinTags(ep.Tags),
		}
		if u := audioURL(site, ep); u != "" {
			item.Enclosure = &rssEnclosure{URL: u, Length: ep.Audio.Size, Type: ep.Audio.Type}
		}
		if ep.Audio.Duration > 0 {
			item.Duration = strconv.Itoa(ep.Audio.Duration)
		}
		if ep.Number > 0 {
			item.Episode = strconv.Itoa(ep.Number)
		}
		if ep.Image != "" {
			item.Image = &itunesImage{Href: views.AbsoluteURL(ep.Image, site.URL)}
		}
		items = append(items, item)
	}

	ch := rssChannel{
		Title:       site.Name,
		Link:        BuildURL(site.URL),
		AtomLink:    atomLink{Href: FileURL(site.URL, "feed.xml"), Rel: "self", Type: "application/rss+xml"},
		Description: site.Description,
		Language:    site.Language,
		Author:      site.Author,
		Summary:     site.Description,
		Keywords:    views.JoinTags(c.Tags()),
		Explicit:    strconv.FormatBool(site.Explicit),
		Items:       items,
	}
	if len(episodes) > 0 {
		// Newest episode date keeps the feed byte-identical across rebuilds.
		ch.LastBuildDate = views.PodcastDate(episodes[0].Date)
	}
	if site.Author != "" || site.OwnerEmail != "" {
		ch.Owner = &itunesOwner{Name: site.Author, Email: site.OwnerEmail}
	}
	if site.CoverImage != "" {
		ch.Image = &itunesImage{Href: views.AbsoluteURL(site.CoverImage, site.URL)}
	}
	if site.Category != "" {
		ch.Category = &itunesCat{Text: site.Category}
	}
	return rssXML{
		Version:     "2.0",
		XMLNSItunes: itunesNS,
		XMLNSAtom:   "http://www.w3.org/2005/Atom",
		Channel:     ch,
	}
}

// marshalXML encodes v with the XML header and indentation.
func marshalXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeFeed(path string, site SiteSection, c content.Collection) error {
	data, err := marshalXML(buildFeed(site, c))
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

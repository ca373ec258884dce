package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/podsite/content"
	"github.com/eringen/podsite/markdown"
)

// page accumulates the first write error so templates read top to bottom.
type page struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (p *page) raw(parts ...string) {
	for _, s := range parts {
		if p.err != nil {
			return
		}
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *page) attr(name, value string) {
	p.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

func (p *page) component(c templ.Component) {
	if p.err != nil || c == nil {
		return
	}
	p.err = c.Render(p.ctx, p.w)
}

// Layout wraps body in the document shell shared by every page.
func Layout(site Site, meta PageMeta, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx, w: w}
		lang := site.Language
		if lang == "" {
			lang = "en"
		}
		title := site.Name
		if meta.Title != "" && meta.Title != site.Name {
			title = meta.Title + " | " + site.Name
		}
		desc := meta.Description
		if desc == "" {
			desc = site.Description
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}

		p.raw("<!doctype html>\n<html")
		p.attr("lang", lang)
		p.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw("<title>")
		p.text(title)
		p.raw("</title>")
		if desc != "" {
			p.raw(`<meta name="description"`)
			p.attr("content", desc)
			p.raw(">")
		}
		if meta.URL != "" {
			p.raw(`<link rel="canonical"`)
			p.attr("href", meta.URL)
			p.raw(`><meta property="og:url"`)
			p.attr("content", meta.URL)
			p.raw(">")
		}
		p.raw(`<meta property="og:title"`)
		p.attr("content", title)
		p.raw(`><meta property="og:type"`)
		p.attr("content", ogType)
		p.raw(">")
		if img := meta.Image; img != "" {
			p.raw(`<meta property="og:image"`)
			p.attr("content", AbsoluteURL(img, site.URL))
			p.raw(">")
		}
		p.raw(`<link rel="alternate" type="application/rss+xml"`)
		p.attr("title", site.Name)
		p.attr("href", "/feed.xml")
		p.raw(">")
		for _, css := range site.Stylesheets {
			p.raw(`<link rel="stylesheet"`)
			p.attr("href", css)
			p.raw(">")
		}
		if meta.JSONLD != "" {
			p.raw(`<script type="application/ld+json">`, meta.JSONLD, `</script>`)
		}
		p.raw("</head><body>")

		p.raw(`<a class="skip-link" href="#main">Skip to content</a>`)
		p.raw(`<header class="site-header"><a class="site-title" href="/">`)
		p.text(site.Name)
		p.raw(`</a><button class="drawer-toggle" type="button" aria-controls="site-drawer" aria-expanded="false" data-drawer-toggle>Menu</button>`)
		p.raw(`<nav id="site-drawer" class="site-nav" data-site-nav data-drawer aria-label="Main"><ul>`)
		p.raw(`<li><a href="/">Home</a></li><li><a href="/episodes/">Episodes</a></li><li><a href="/feed.xml">RSS</a></li>`)
		p.raw("</ul></nav></header>")

		p.raw(`<main id="main">`)
		p.component(body)
		p.raw("</main>")

		p.raw(`<footer class="site-footer">`)
		if site.NewsletterEndpoint != "" {
			newsletterForm(p, site.NewsletterEndpoint)
		}
		p.raw("<p>&copy; ")
		p.text(site.Name)
		p.raw("</p></footer>")
		if site.Script != "" {
			p.raw("<script")
			p.attr("src", site.Script)
			p.raw(" defer></script>")
		}
		p.raw("</body></html>\n")
		return p.err
	})
}

func newsletterForm(p *page, endpoint string) {
	p.raw(`<form class="newsletter" data-newsletter-form method="post"`)
	p.attr("action", endpoint)
	p.attr("data-endpoint", endpoint)
	p.raw(`><label for="newsletter-email">Get new episodes by email</label>`)
	p.raw(`<input id="newsletter-email" type="email" name="email" required autocomplete="email">`)
	p.raw(`<button type="submit">Subscribe</button><p class="newsletter-status" role="status" data-role="status"></p></form>`)
}

// Home lists the latest episode prominently followed by the rest.
func Home(site Site, latest *EpisodePage, episodes []content.Episode) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx, w: w}
		p.raw(`<section class="hero"><h1>`)
		p.text(site.Name)
		p.raw("</h1>")
		if site.Description != "" {
			p.raw("<p>")
			p.text(site.Description)
			p.raw("</p>")
		}
		p.raw("</section>")
		if latest != nil {
			p.raw(`<section class="latest-episode"><h2>Latest episode</h2>`)
			episodeCard(p, latest.Episode)
			audioPlayer(p, latest.Episode, latest.AudioURL)
			p.raw("</section>")
		} else {
			p.raw(`<p class="empty">No episodes yet.</p>`)
		}
		if len(episodes) > 1 {
			p.raw(`<section class="episode-list"><h2>More episodes</h2><ul>`)
			for _, ep := range episodes[1:] {
				p.raw("<li>")
				episodeCard(p, ep)
				p.raw("</li>")
			}
			p.raw(`</ul><p><a href="/episodes/">All episodes</a></p></section>`)
		}
		return p.err
	})
	return Layout(site, PageMeta{
		Title:  site.Name,
		URL:    buildURL(site.URL),
		Image:  site.CoverImage,
		JSONLD: PodcastSeriesJsonLD(site),
	}, body)
}

// EpisodeIndex lists every published episode.
func EpisodeIndex(site Site, episodes []content.Episode) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx, w: w}
		p.raw(`<section class="episode-index"><h1>Episodes</h1>`)
		if len(episodes) == 0 {
			p.raw(`<p class="empty">No episodes yet.</p>`)
		} else {
			p.raw("<ol reversed>")
			for _, ep := range episodes {
				p.raw("<li>")
				episodeCard(p, ep)
				p.raw("</li>")
			}
			p.raw("</ol>")
		}
		p.raw("</section>")
		return p.err
	})
	return Layout(site, PageMeta{
		Title: "Episodes",
		URL:   buildURL(site.URL, "episodes"),
	}, body)
}

// Episode renders a single episode page.
func Episode(site Site, ep EpisodePage) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx, w: w}
		p.raw(`<article class="episode"`)
		p.attr("data-episode-id", strconv.Itoa(ep.Episode.Number))
		p.raw("><header>")
		if ep.Episode.Number > 0 {
			p.raw(`<p class="episode-number">Episode `)
			p.text(EpisodeNumber(ep.Episode.Number))
			p.raw("</p>")
		}
		p.raw("<h1>")
		p.text(ep.Episode.Title)
		p.raw("</h1>")
		episodeMeta(p, ep.Episode)
		p.raw("</header>")
		if ep.Cover != "" {
			p.raw(`<figure class="episode-cover">`, ep.Cover, "</figure>")
		}
		audioPlayer(p, ep.Episode, ep.AudioURL)
		p.raw(`<section class="episode-notes">`)
		p.component(ep.Body)
		p.raw("</section>")
		if len(ep.Episode.Tags) > 0 {
			p.raw(`<ul class="tags">`)
			for _, t := range ep.Episode.Tags {
				p.raw("<li>")
				p.text(t)
				p.raw("</li>")
			}
			p.raw("</ul>")
		}
		if ep.Newer != nil || ep.Older != nil {
			p.raw(`<nav class="episode-pager" aria-label="More episodes">`)
			if ep.Older != nil {
				p.raw(`<a rel="prev"`)
				p.attr("href", ep.Older.URL)
				p.raw(">&larr; ")
				p.text(ep.Older.Title)
				p.raw("</a>")
			}
			if ep.Newer != nil {
				p.raw(`<a rel="next"`)
				p.attr("href", ep.Newer.URL)
				p.raw(">")
				p.text(ep.Newer.Title)
				p.raw(" &rarr;</a>")
			}
			p.raw("</nav>")
		}
		p.raw("</article>")
		return p.err
	})
	image := ep.Episode.Image
	if image == "" {
		image = site.CoverImage
	}
	return Layout(site, PageMeta{
		Title:       ep.Episode.Title,
		Description: ep.Episode.Description,
		URL:         AbsoluteURL(ep.Episode.URL, site.URL),
		OGType:      "article",
		Image:       image,
		JSONLD:      PodcastEpisodeJsonLD(site, ep.Episode, ep.AudioURL),
	}, body)
}

// NotFound renders the 404 page.
func NotFound(site Site) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx, w: w}
		p.raw(`<section class="not-found"><h1>Page not found</h1><p>That page does not exist. Try the <a href="/episodes/">episode list</a>.</p></section>`)
		return p.err
	})
	return Layout(site, PageMeta{Title: "Page not found"}, body)
}

func episodeCard(p *page, ep content.Episode) {
	p.raw(`<article class="episode-card"><h3><a`)
	p.attr("href", ep.URL)
	p.raw(">")
	if ep.Number > 0 {
		p.text(fmt.Sprintf("%s. ", EpisodeNumber(ep.Number)))
	}
	p.text(ep.Title)
	p.raw("</a></h3>")
	episodeMeta(p, ep)
	if ep.Description != "" {
		p.raw("<p>")
		p.text(ep.Description)
		p.raw("</p>")
	}
	p.raw("</article>")
}

func episodeMeta(p *page, ep content.Episode) {
	p.raw(`<p class="episode-meta"><time`)
	p.attr("datetime", HTMLDateString(ep.Date))
	p.raw(">")
	p.text(ReadableDate(ep.Date))
	p.raw("</time>")
	if ep.Audio.Duration > 0 {
		p.raw(` &middot; <span class="duration">`)
		p.text(FormatDuration(ep.Audio.Duration))
		p.raw("</span>")
	}
	p.raw("</p>")
}

func audioPlayer(p *page, ep content.Episode, audioURL string) {
	src := markdown.SafeURL(audioURL)
	if src == "" {
		return
	}
	p.raw(`<div class="audio-player" data-audio-player data-src="`, src, `"`)
	p.attr("data-title", ep.Title)
	p.attr("data-episode-id", strconv.Itoa(ep.Number))
	p.raw(`><button type="button" class="audio-toggle" data-action="toggle" aria-label="Play">Play</button>`)
	p.raw(`<button type="button" class="audio-back" data-action="back" aria-label="Back 10 seconds">-10s</button>`)
	p.raw(`<input type="range" class="audio-seek" data-role="seek" min="0" value="0" step="1" aria-label="Seek"`)
	p.attr("max", strconv.Itoa(ep.Audio.Duration))
	p.raw(`><span class="audio-time"><span data-role="current">0:00</span> / <span data-role="duration">`)
	p.text(FormatDuration(ep.Audio.Duration))
	p.raw("</span></span>")
	p.raw(`<button type="button" class="audio-speed" data-action="speed" aria-label="Playback speed">1x</button>`)
	p.raw(`<a class="audio-download" download href="`, src, `">Download</a></div>`)
}

package podsite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/tdewolff/minify/v2"
	"go.uber.org/zap"

	"github.com/eringen/podsite/content"
	"github.com/eringen/podsite/images"
	"github.com/eringen/podsite/markdown"
	"github.com/eringen/podsite/scripts"
	"github.com/eringen/podsite/styles"
	"github.com/eringen/podsite/views"
)

// Fixed locations inside the source and output trees.
const (
	episodesDir = "episodes"
	stylesDir   = "styles"
	assetsDir   = "assets"
	faviconDir  = "assets/favicon"
	scriptEntry = "assets/js/index.js"
	scriptOut   = "assets/js/bundle.js"
	imageDir    = "img"
)

// buildRun carries the state shared by the steps of one build.
type buildRun struct {
	app *App
	cfg SiteConfig
	log *zap.Logger

	episodes    content.Collection
	images      *images.Transformer
	md          *markdown.Renderer
	stylesheets []string
	script      string
}

func newBuildRun(a *App, id string) *buildRun {
	cfg := a.Config
	log := a.Log.With(zap.String("build_id", id), zap.String("mode", string(cfg.Mode)))
	formats, _ := cfg.imageFormats() // validated in New
	tr := images.New(images.Options{
		SourceDir: cfg.SourceDir(),
		OutputDir: filepath.Join(cfg.OutputDir(), imageDir),
		URLPath:   "/" + imageDir + "/",
		Widths:    cfg.Images.Widths,
		Formats:   formats,
		Quality:   cfg.Images.Quality,
	}, log)
	return &buildRun{
		app:    a,
		cfg:    cfg,
		log:    log,
		images: tr,
		md:     markdown.New(tr.Shortcode),
	}
}

func (b *buildRun) steps(upload *UploadOptions) []Step {
	steps := []Step{
		{Name: "clean", Run: b.clean},
		{Name: "passthrough", Requires: []string{"clean"}, Run: b.passthrough},
		{Name: "scripts", Requires: []string{"clean"}, Run: b.scripts},
		{Name: "styles", Requires: []string{"clean"}, Run: b.styles},
		{Name: "collect", Run: b.collect},
		{Name: "pages", Requires: []string{"collect", "styles", "scripts"}, Run: b.pages},
		{Name: "feeds", Requires: []string{"collect"}, Run: b.feeds},
	}
	if upload != nil {
		opts := *upload
		steps = append(steps, Step{
			Name:     "upload",
			Requires: []string{"passthrough", "scripts", "styles", "pages", "feeds"},
			Check:    b.checkOutputComplete,
			Run: func(ctx context.Context) error {
				return b.upload(ctx, opts)
			},
		})
	}
	return steps
}

func (b *buildRun) out(parts ...string) string {
	return filepath.Join(append([]string{b.cfg.OutputDir()}, parts...)...)
}

func (b *buildRun) src(parts ...string) string {
	return filepath.Join(append([]string{b.cfg.SourceDir()}, parts...)...)
}

// clean empties the output tree. Generated images are content-addressed,
// so the image directory is kept and unchanged variants are not re-encoded.
func (b *buildRun) clean(context.Context) error {
	out := b.cfg.OutputDir()
	absOut, err := filepath.Abs(out)
	if err != nil {
		return err
	}
	for _, guarded := range []string{b.cfg.Dir, b.cfg.SourceDir()} {
		if abs, err := filepath.Abs(guarded); err == nil && abs == absOut {
			return fmt.Errorf("refusing to clean %s: output overlaps the project", out)
		}
	}
	entries, err := os.ReadDir(out)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if e.Name() == imageDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(out, e.Name())); err != nil {
			return err
		}
	}
	return os.MkdirAll(out, 0o755)
}

// passthrough copies src/assets to the output tree, skipping sources that
// other steps compile, and copies favicons to the site root.
func (b *buildRun) passthrough(ctx context.Context) error {
	root := b.src(assetsDir)
	if !dirExists(root) {
		return nil
	}
	copied := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(b.cfg.SourceDir(), p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if filepath.ToSlash(rel) == filepath.ToSlash(filepath.Dir(scriptEntry)) {
				return fs.SkipDir
			}
			return nil
		}
		switch filepath.Ext(p) {
		case ".scss", ".sass":
			return nil
		}
		if err := copyFile(p, b.out(rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return err
	}

	favicons, err := os.ReadDir(b.src(faviconDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, f := range favicons {
		if f.IsDir() {
			continue
		}
		if err := copyFile(b.src(faviconDir, f.Name()), b.out(f.Name())); err != nil {
			return err
		}
		copied++
	}
	b.log.Debug("copied static assets", zap.Int("files", copied))
	return nil
}

// scripts bundles the JS entry point. A bundle that fails to build is
// replaced by an empty file so pages still load.
func (b *buildRun) scripts(ctx context.Context) error {
	outfile := b.out(scriptOut)
	res, err := scripts.Bundle(ctx, scripts.Options{
		Entry:   b.src(scriptEntry),
		Outfile: outfile,
		Release: b.cfg.Mode.IsRelease(),
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", nodeEnv(b.cfg.Mode)),
		},
	})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, scripts.ErrNoEntry):
		return fmt.Errorf("%w: no %s in source tree", ErrSkipStep, scriptEntry)
	default:
		b.log.Error("script bundle failed, writing empty bundle", zap.Error(err))
		if err := writeFile(outfile, nil); err != nil {
			return err
		}
	}
	for _, w := range res.Warnings {
		b.log.Warn("script bundle warning", zap.String("warning", w))
	}
	b.script = "/" + scriptOut
	return nil
}

// styles compiles src/styles. Broken stylesheets are written empty by the
// processor, so only I/O errors fail the step.
func (b *buildRun) styles(ctx context.Context) error {
	proc := styles.New(styles.Options{
		Release:      b.cfg.Mode.IsRelease(),
		IncludePaths: []string{b.src(stylesDir), b.src("_includes")},
	}, b.app.compiler, b.log)
	n, err := proc.CompileTree(ctx, b.src(stylesDir), b.out(stylesDir))
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(b.out(stylesDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".css" {
			b.stylesheets = append(b.stylesheets, "/"+stylesDir+"/"+e.Name())
		}
	}
	sort.Strings(b.stylesheets)
	b.log.Debug("compiled stylesheets", zap.Int("files", n))
	return nil
}

func (b *buildRun) collect(ctx context.Context) error {
	c, err := content.Load(ctx, b.src(episodesDir))
	if err != nil {
		return err
	}
	b.episodes = c
	latest := "none"
	if ep, ok := c.Latest(); ok {
		latest = ep.Title
	}
	b.log.Info("collected episodes", zap.Int("episodes", c.Len()), zap.String("latest", latest))
	return nil
}

func (b *buildRun) site() views.Site {
	s := b.cfg.Site
	return views.Site{
		Name:               s.Name,
		URL:                s.URL,
		Description:        s.Description,
		Author:             s.Author,
		Language:           s.Language,
		CoverImage:         s.CoverImage,
		EpisodeURLBase:     s.EpisodeURLBase,
		NewsletterEndpoint: s.NewsletterEndpoint,
		Stylesheets:        b.stylesheets,
		Script:             b.script,
	}
}

// episodePage renders the body and cover of one episode. Missing image
// sources or alt text fail the page.
func (b *buildRun) episodePage(ctx context.Context, eps []content.Episode, i int) (views.EpisodePage, error) {
	ep := eps[i]
	body, err := b.md.Render(ctx, ep.Content)
	if err != nil {
		return views.EpisodePage{}, fmt.Errorf("%s: %w", ep.SourcePath, err)
	}
	page := views.EpisodePage{
		Episode:  ep,
		Body:     templ.Raw(body),
		AudioURL: audioURL(b.cfg.Site, ep),
	}
	if ep.Image != "" {
		cover, err := b.images.Shortcode(ctx, ep.Image, ep.ImageAlt, "(min-width: 900px) 900px, 100vw")
		if err != nil {
			return views.EpisodePage{}, fmt.Errorf("%s: cover image: %w", ep.SourcePath, err)
		}
		page.Cover = cover
	}
	if i > 0 {
		page.Newer = &eps[i-1]
	}
	if i+1 < len(eps) {
		page.Older = &eps[i+1]
	}
	return page, nil
}

func (b *buildRun) pages(ctx context.Context) error {
	var m *minify.M
	if b.cfg.Mode.IsRelease() {
		m = newHTMLMinifier()
	}
	site := b.site()
	eps := b.episodes.Items()
	v := b.app.Views

	var latest *views.EpisodePage
	for i, ep := range eps {
		page, err := b.episodePage(ctx, eps, i)
		if err != nil {
			return err
		}
		if i == 0 {
			latest = &page
		}
		path := b.out(filepath.FromSlash(strings.Trim(ep.URL, "/")), "index.html")
		if err := RenderToFile(ctx, path, v.Episode(site, page), m); err != nil {
			return err
		}
	}

	if err := RenderToFile(ctx, b.out("index.html"), v.Home(site, latest, eps), m); err != nil {
		return err
	}
	if err := RenderToFile(ctx, b.out(episodesDir, "index.html"), v.EpisodeIndex(site, eps), m); err != nil {
		return err
	}
	if err := RenderToFile(ctx, b.out("404.html"), v.NotFound(site), m); err != nil {
		return err
	}
	b.log.Info("rendered pages",
		zap.Int("pages", len(eps)+3),
		zap.Int("images", b.images.Sources()),
	)
	return nil
}

func (b *buildRun) feeds(context.Context) error {
	eps := b.episodes.Items()
	if err := writeFeed(b.out("feed.xml"), b.cfg.Site, b.episodes); err != nil {
		return fmt.Errorf("feed.xml: %w", err)
	}
	if err := writeSitemap(b.out("sitemap.xml"), b.cfg.Site, eps); err != nil {
		return fmt.Errorf("sitemap.xml: %w", err)
	}
	if err := writeEpisodesJSON(b.out("api", "episodes.json"), b.cfg.Site, eps); err != nil {
		return fmt.Errorf("api/episodes.json: %w", err)
	}
	return nil
}

// checkOutputComplete verifies the artifacts later steps depend on exist.
func (b *buildRun) checkOutputComplete(context.Context) error {
	for _, rel := range []string{"index.html", "feed.xml"} {
		if _, err := os.Stat(b.out(rel)); err != nil {
			return fmt.Errorf("missing %s: %w", rel, err)
		}
	}
	if b.script != "" {
		if _, err := os.Stat(b.out(scriptOut)); err != nil {
			return fmt.Errorf("script bundle not on disk: %w", err)
		}
	}
	return nil
}

func (b *buildRun) upload(ctx context.Context, opts UploadOptions) error {
	report, err := b.app.upload(ctx, b.log, opts)
	if err != nil {
		if isMissingCredentials(err) {
			return fmt.Errorf("%w: %w", ErrSkipStep, err)
		}
		return err
	}
	if report.Failed > 0 {
		b.log.Warn("some uploads failed", zap.Int("failed", report.Failed), zap.Int("total", report.Total()))
	}
	b.log.Info("uploaded output", zap.String("bytes", humanize.Bytes(uint64(report.Bytes))))
	return nil
}

func nodeEnv(m BuildMode) string {
	if m.IsRelease() {
		return "production"
	}
	return "development"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

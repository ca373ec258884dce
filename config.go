package podsite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/eringen/podsite/cdn"
	"github.com/eringen/podsite/images"
	"github.com/eringen/podsite/logging"
)

// ConfigFile is the optional project settings file.
const ConfigFile = "podsite.toml"

// BuildMode gates minification, source maps and CSS pruning.
type BuildMode string

const (
	Development BuildMode = "development"
	Release     BuildMode = "release"
)

// ParseBuildMode maps PODSITE_ENV values onto a BuildMode. Anything other
// than production or release builds for development.
func ParseBuildMode(s string) BuildMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod", "release":
		return Release
	default:
		return Development
	}
}

// IsRelease reports whether m is a release build.
func (m BuildMode) IsRelease() bool { return m == Release }

// SiteSection holds the [site] table.
type SiteSection struct {
	Name               string `toml:"name"`
	URL                string `toml:"url"` // canonical URL (default "http://localhost:8080")
	Description        string `toml:"description"`
	Author             string `toml:"author"`
	Language           string `toml:"language"`
	CoverImage         string `toml:"cover_image"`
	OwnerEmail         string `toml:"owner_email"`
	Category           string `toml:"category"`
	Explicit           bool   `toml:"explicit"`
	EpisodeURLBase     string `toml:"episode_url_base"`
	NewsletterEndpoint string `toml:"newsletter_endpoint"`
}

// PathsSection holds the [paths] table. Relative paths resolve against the
// project directory.
type PathsSection struct {
	Source string `toml:"source"` // default "src"
	Output string `toml:"output"` // default "_site"
	State  string `toml:"state"`  // default ".podsite"
}

// ImagesSection holds the [images] table.
type ImagesSection struct {
	Widths  []int    `toml:"widths"`
	Formats []string `toml:"formats"`
	Quality int      `toml:"quality"`
}

// CDNSection holds the [cdn] table. Credentials come from the environment
// only.
type CDNSection struct {
	Backend     string `toml:"backend"` // bunny or s3 (default bunny)
	URL         string `toml:"url"`     // public CDN root used when rewriting
	Prefix      string `toml:"prefix"`
	Region      string `toml:"region"`
	Concurrency int    `toml:"concurrency"`
	Clean       bool   `toml:"clean"`
}

// SiteConfig holds all configuration for a podsite project.
type SiteConfig struct {
	Dir string `toml:"-"` // project directory

	Site   SiteSection   `toml:"site"`
	Paths  PathsSection  `toml:"paths"`
	Images ImagesSection `toml:"images"`
	CDN    CDNSection    `toml:"cdn"`

	Mode       BuildMode       `toml:"-"`
	SassBinary string          `toml:"-"` // Dart Sass executable; empty uses PATH
	Bunny      cdn.BunnyConfig `toml:"-"`
	S3         cdn.S3Config    `toml:"-"`
	Log        logging.Options `toml:"-"`
}

func (c *SiteConfig) setDefaults() {
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Site.Name == "" {
		c.Site.Name = "Podcast"
	}
	if c.Site.URL == "" {
		c.Site.URL = "http://localhost:8080"
	}
	if c.Site.Language == "" {
		c.Site.Language = "en"
	}
	if c.Paths.Source == "" {
		c.Paths.Source = "src"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "_site"
	}
	if c.Paths.State == "" {
		c.Paths.State = ".podsite"
	}
	if len(c.Images.Widths) == 0 {
		c.Images.Widths = images.DefaultWidths
	}
	if len(c.Images.Formats) == 0 {
		for _, f := range images.DefaultFormats {
			c.Images.Formats = append(c.Images.Formats, string(f))
		}
	}
	if c.Images.Quality == 0 {
		c.Images.Quality = images.DefaultQuality
	}
	if c.CDN.Backend == "" {
		c.CDN.Backend = "bunny"
	}
	if c.CDN.URL != "" && !strings.Contains(c.CDN.URL, "://") {
		c.CDN.URL = "https://" + c.CDN.URL
	}
	if c.CDN.Concurrency == 0 {
		c.CDN.Concurrency = cdn.DefaultConcurrency
	}
	if c.Mode == "" {
		c.Mode = Development
	}
}

// Validate rejects settings the build cannot work with.
func (c *SiteConfig) Validate() error {
	var errs []error
	if len(c.Images.Widths) == 0 {
		errs = append(errs, errors.New("images.widths must not be empty"))
	}
	for _, w := range c.Images.Widths {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("images.widths: %d is not a positive width", w))
		}
	}
	if _, err := c.imageFormats(); err != nil {
		errs = append(errs, err)
	}
	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		errs = append(errs, fmt.Errorf("images.quality %d outside 1-100", c.Images.Quality))
	}
	if c.CDN.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("cdn.concurrency must be positive, got %d", c.CDN.Concurrency))
	}
	switch c.CDN.Backend {
	case "bunny", "s3":
	default:
		errs = append(errs, fmt.Errorf("cdn.backend %q must be bunny or s3", c.CDN.Backend))
	}
	return errors.Join(errs...)
}

func (c *SiteConfig) imageFormats() ([]images.Format, error) {
	if len(c.Images.Formats) == 0 {
		return nil, errors.New("images.formats must not be empty")
	}
	out := make([]images.Format, 0, len(c.Images.Formats))
	for _, s := range c.Images.Formats {
		f, err := images.ParseFormat(s)
		if err != nil {
			return nil, fmt.Errorf("images.formats: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// path resolves p against the project directory.
func (c *SiteConfig) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// SourceDir is the absolute or project-relative source tree.
func (c *SiteConfig) SourceDir() string { return c.path(c.Paths.Source) }

// OutputDir is the build artifact tree.
func (c *SiteConfig) OutputDir() string { return c.path(c.Paths.Output) }

// StateDir holds the build lock and the upload ledger.
func (c *SiteConfig) StateDir() string { return c.path(c.Paths.State) }

// LoadConfig reads the configuration for the project in dir: defaults, then
// podsite.toml, then .env (never overriding real environment variables),
// then the environment.
func LoadConfig(dir string) (SiteConfig, error) {
	cfg := SiteConfig{
		Dir: dir,
		CDN: CDNSection{Region: cdn.DefaultBunnyRegion},
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return SiteConfig{}, fmt.Errorf("parse %s: %w", ConfigFile, err)
		}
	case !os.IsNotExist(err):
		return SiteConfig{}, fmt.Errorf("read %s: %w", ConfigFile, err)
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		return SiteConfig{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return SiteConfig{}, err
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	setString(&c.Site.URL, "SITE_URL")
	setString(&c.Site.Name, "SITE_NAME")
	setString(&c.Site.NewsletterEndpoint, "NEWSLETTER_ENDPOINT")
	setString(&c.Site.EpisodeURLBase, "EPISODE_URL_BASE")
	c.Mode = ParseBuildMode(os.Getenv("PODSITE_ENV"))

	setString(&c.CDN.URL, "BUNNY_CDN_URL")
	setString(&c.CDN.Prefix, "BUNNY_PREFIX")
	setString(&c.CDN.Backend, "CDN_BACKEND")
	if v, ok := os.LookupEnv("BUNNY_REGION"); ok {
		c.CDN.Region = strings.TrimSpace(v)
	}
	if v := os.Getenv("CLEAN_DESTINATION"); v != "" {
		c.CDN.Clean = v == "true"
	}
	if v := os.Getenv("CDN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CDN_CONCURRENCY: %w", err)
		}
		c.CDN.Concurrency = n
	}

	c.Bunny = cdn.BunnyConfig{
		StorageZone: os.Getenv("BUNNY_STORAGE_ZONE"),
		AccessKey:   os.Getenv("BUNNY_API_KEY"),
		Region:      c.CDN.Region,
		Endpoint:    os.Getenv("BUNNY_STORAGE_ENDPOINT"),
	}
	c.S3 = cdn.S3Config{
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		Bucket:    os.Getenv("S3_BUCKET"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Region:    os.Getenv("S3_REGION"),
		UseSSL:    os.Getenv("S3_USE_SSL") != "false",
	}

	c.SassBinary = os.Getenv("SASS_BINARY")
	c.Log = logging.Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		File:   os.Getenv("LOG_FILE"),
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Option configures additional App behavior.
type Option func(*App)

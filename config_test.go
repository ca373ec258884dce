package podsite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eringen/podsite/cdn"
	"github.com/eringen/podsite/images"
)

var configEnv = []string{
	"SITE_URL", "SITE_NAME", "NEWSLETTER_ENDPOINT", "EPISODE_URL_BASE", "PODSITE_ENV",
	"BUNNY_CDN_URL", "BUNNY_PREFIX", "CDN_BACKEND", "BUNNY_REGION", "CLEAN_DESTINATION",
	"CDN_CONCURRENCY", "BUNNY_STORAGE_ZONE", "BUNNY_API_KEY", "BUNNY_STORAGE_ENDPOINT",
	"S3_ENDPOINT", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_REGION", "S3_USE_SSL",
	"SASS_BINARY", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
}

// clearConfigEnv unsets every variable LoadConfig reads and restores them
// when the test ends, including values a .env file loaded.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "Podcast", cfg.Site.Name)
	require.Equal(t, "http://localhost:8080", cfg.Site.URL)
	require.Equal(t, Development, cfg.Mode)
	require.Equal(t, filepath.Join(dir, "src"), cfg.SourceDir())
	require.Equal(t, filepath.Join(dir, "_site"), cfg.OutputDir())
	require.Equal(t, filepath.Join(dir, ".podsite"), cfg.StateDir())
	require.Equal(t, images.DefaultWidths, cfg.Images.Widths)
	require.Equal(t, []string{"avif", "webp", "jpeg"}, cfg.Images.Formats)
	require.Equal(t, cdn.DefaultConcurrency, cfg.CDN.Concurrency)
	require.Equal(t, "bunny", cfg.CDN.Backend)
	require.Equal(t, "la", cfg.Bunny.Region)
	require.Equal(t, "https://la.storage.bunnycdn.com", cfg.Bunny.BaseURL())
	require.False(t, cfg.CDN.Clean)
}

func TestLoadConfigFileDotenvAndEnvironment(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	toml := `
[site]
name = "Night Shift"
url = "https://file.example.com"
explicit = true
episode_url_base = "https://media.example.com/audio/"

[paths]
output = "public"

[images]
widths = [320, 640]
formats = ["webp", "jpeg"]
quality = 70

[cdn]
prefix = "site"
concurrency = 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(toml), 0o644))
	dotenv := "BUNNY_API_KEY=from-dotenv\nBUNNY_STORAGE_ZONE=zone\nSITE_URL=https://dotenv.example.com\nBUNNY_REGION=\nCLEAN_DESTINATION=true\nBUNNY_CDN_URL=night.b-cdn.net\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o644))
	t.Setenv("SITE_URL", "https://env.example.com")
	t.Setenv("PODSITE_ENV", "production")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "Night Shift", cfg.Site.Name)
	require.Equal(t, "https://env.example.com", cfg.Site.URL, "real environment wins over .env")
	require.True(t, cfg.Site.Explicit)
	require.Equal(t, filepath.Join(dir, "public"), cfg.OutputDir())
	require.Equal(t, []int{320, 640}, cfg.Images.Widths)
	require.Equal(t, 70, cfg.Images.Quality)
	require.Equal(t, "site", cfg.CDN.Prefix)
	require.Equal(t, 4, cfg.CDN.Concurrency)
	require.Equal(t, Release, cfg.Mode)
	require.Equal(t, "from-dotenv", cfg.Bunny.AccessKey)
	require.Equal(t, "zone", cfg.Bunny.StorageZone)
	require.Empty(t, cfg.Bunny.Region)
	require.Equal(t, "https://storage.bunnycdn.com", cfg.Bunny.BaseURL())
	require.True(t, cfg.CDN.Clean)
	require.Equal(t, "https://night.b-cdn.net", cfg.CDN.URL)
}

func TestLoadConfigRejectsBadFile(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("[site\nname="), 0o644))
	_, err := LoadConfig(dir)
	require.ErrorContains(t, err, ConfigFile)
}

func TestLoadConfigRejectsBadConcurrency(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CDN_CONCURRENCY", "many")
	_, err := LoadConfig(t.TempDir())
	require.ErrorContains(t, err, "CDN_CONCURRENCY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SiteConfig)
		wantErr string
	}{
		{"defaults", func(*SiteConfig) {}, ""},
		{"bad format", func(c *SiteConfig) { c.Images.Formats = []string{"gif"} }, "images.formats"},
		{"bad width", func(c *SiteConfig) { c.Images.Widths = []int{300, -1} }, "images.widths"},
		{"bad quality", func(c *SiteConfig) { c.Images.Quality = 101 }, "images.quality"},
		{"bad concurrency", func(c *SiteConfig) { c.CDN.Concurrency = -2 }, "cdn.concurrency"},
		{"bad backend", func(c *SiteConfig) { c.CDN.Backend = "ftp" }, "cdn.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg SiteConfig
			cfg.setDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseBuildMode(t *testing.T) {
	require.Equal(t, Release, ParseBuildMode("production"))
	require.Equal(t, Release, ParseBuildMode(" Release "))
	require.Equal(t, Development, ParseBuildMode(""))
	require.Equal(t, Development, ParseBuildMode("staging"))
	require.True(t, Release.IsRelease())
	require.False(t, Development.IsRelease())
}

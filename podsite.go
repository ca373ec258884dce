// Package podsite builds a podcast website from a tree of markdown
// episodes, SCSS, JavaScript and images, and publishes the result to a CDN.
//
// Projects provide their own templ components via the ViewFuncs struct,
// or use the defaults from the views package. podsite handles the asset
// pipeline, the episode collection, feeds, the preview server and uploads.
package podsite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eringen/podsite/cdn"
	"github.com/eringen/podsite/logging"
	"github.com/eringen/podsite/styles"
)

// ErrOutputMissing is returned by Upload when the output tree has not been
// built.
var ErrOutputMissing = errors.New("output directory does not exist; run a build first")

// App is the central podsite application. It wires together the asset
// transforms, the episode collection, the page templates and the uploader.
type App struct {
	Config SiteConfig
	Views  ViewFuncs
	Log    *zap.Logger
	Echo   *echo.Echo // set by Serve

	compiler     styles.Compiler
	storage      cdn.Storage
	httpClient   *http.Client
	customRoutes []func(*App)
	closers      []io.Closer
}

// WithLogger sets the logger instead of building one from Config.Log.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) {
		a.Log = logger
	}
}

// WithViews replaces the page components. Nil fields keep the defaults.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// WithStyleCompiler replaces the Dart Sass compiler.
func WithStyleCompiler(c styles.Compiler) Option {
	return func(a *App) {
		a.compiler = c
	}
}

// WithStorage replaces the configured CDN backend.
func WithStorage(s cdn.Storage) Option {
	return func(a *App) {
		a.storage = s
	}
}

// WithHTTPClient sets the client used by the Bunny backend.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

// WithCustomRoutes registers additional routes on the preview server.
// The callback receives the App after a.Echo is created.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// New creates an App with the given configuration.
func New(cfg SiteConfig, opts ...Option) (*App, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("podsite: invalid config: %w", err)
	}

	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	a.Views.setDefaults()

	if a.Log == nil {
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("podsite: init logger: %w", err)
		}
		a.Log = logger
	}
	if a.compiler == nil {
		sc := styles.NewSassCompiler(cfg.SassBinary, a.Log)
		a.compiler = sc
		a.closers = append(a.closers, sc)
	}
	return a, nil
}

// Build produces the output tree. It holds the project lock for its whole
// duration.
func (a *App) Build(ctx context.Context) error {
	lock, err := acquireLock(a.Config.StateDir())
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return a.build(ctx, nil)
}

// BuildAndUpload builds and then uploads in the same locked run. Missing
// CDN credentials skip the upload with a warning.
func (a *App) BuildAndUpload(ctx context.Context, opts UploadOptions) error {
	lock, err := acquireLock(a.Config.StateDir())
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return a.build(ctx, &opts)
}

func (a *App) build(ctx context.Context, upload *UploadOptions) error {
	run := newBuildRun(a, uuid.NewString())
	plan, err := NewPlan(run.steps(upload)...)
	if err != nil {
		return err
	}
	plan.Log = run.log
	run.log.Info("build started",
		zap.String("source", a.Config.SourceDir()),
		zap.String("output", a.Config.OutputDir()),
	)
	return plan.Run(ctx)
}

// storageBackend returns the configured CDN backend.
func (a *App) storageBackend() (cdn.Storage, error) {
	if a.storage != nil {
		return a.storage, nil
	}
	switch a.Config.CDN.Backend {
	case "s3":
		s, err := cdn.NewS3(a.Config.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		b, err := cdn.NewBunny(a.Config.Bunny, a.httpClient)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Close releases the Sass compiler and flushes the logger.
func (a *App) Close() error {
	var err error
	for _, c := range a.closers {
		err = multierr.Append(err, c.Close())
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return err
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

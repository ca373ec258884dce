package podsite

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/eringen/podsite/views"
)

// Serve builds the site and serves the output tree on addr until ctx is
// cancelled. With watch set, source changes trigger a rebuild.
func (a *App) Serve(ctx context.Context, addr string, watch bool) error {
	if err := a.Build(ctx); err != nil {
		return err
	}
	a.Echo = a.newServer()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	if watch {
		w, err := newSourceWatcher(a.Config.SourceDir(), defaultDebounce, a.Log)
		if err != nil {
			return err
		}
		defer w.Stop()
		go a.rebuildOnChange(ctx, w.Changes())
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("preview server listening", zap.String("addr", addr), zap.String("root", a.Config.OutputDir()))
		errCh <- a.Echo.Start(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) rebuildOnChange(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			start := time.Now()
			if err := a.Build(ctx); err != nil {
				a.Log.Error("rebuild failed", zap.Error(err))
				continue
			}
			a.Log.Info("rebuilt site", zap.Duration("duration", time.Since(start)))
		}
	}
}

func (a *App) newServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.Log.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/"+imageDir+"/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	e.Use(a.cacheControlMiddleware)

	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Root:  a.Config.OutputDir(),
		Index: "index.html",
	}))
	return e
}

func (a *App) cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	release := a.Config.Mode.IsRelease()
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		h := c.Response().Header()
		switch {
		case strings.HasPrefix(path, "/"+imageDir+"/"):
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		case !release:
			h.Set("Cache-Control", "no-cache")
		case path == "/sitemap.xml" || path == "/feed.xml" || strings.HasPrefix(path, "/api/"):
			h.Set("Cache-Control", "public, max-age=86400")
		default:
			h.Set("Cache-Control", "public, max-age=3600")
		}
		return next(c)
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		a.renderNotFound(c)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	}
	c.Echo().DefaultHTTPErrorHandler(err, c)
}

// renderNotFound serves the built 404 page, falling back to rendering one.
func (a *App) renderNotFound(c echo.Context) {
	if page, err := os.ReadFile(filepath.Join(a.Config.OutputDir(), "404.html")); err == nil {
		_ = c.HTMLBlob(http.StatusNotFound, page)
		return
	}
	site := views.Site{Name: a.Config.Site.Name, URL: a.Config.Site.URL}
	_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(site))
}

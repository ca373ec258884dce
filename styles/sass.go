package styles

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
	"go.uber.org/zap"
)

// SassCompiler runs SCSS through an embedded Dart Sass process. The process
// is started lazily on first use and reused until Close.
type SassCompiler struct {
	binary  string
	timeout time.Duration
	log     *zap.Logger

	once       sync.Once
	transpiler *godartsass.Transpiler
	startErr   error
}

// NewSassCompiler returns a compiler that launches binary (empty means the
// dart-sass executable found on PATH).
func NewSassCompiler(binary string, logger *zap.Logger) *SassCompiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SassCompiler{binary: binary, timeout: 30 * time.Second, log: logger.Named("sass")}
}

func (s *SassCompiler) start() (*godartsass.Transpiler, error) {
	s.once.Do(func() {
		s.transpiler, s.startErr = godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: s.binary,
			Timeout:                  s.timeout,
			LogEventHandler: func(e godartsass.LogEvent) {
				s.log.Warn("sass", zap.String("message", e.Message))
			},
		})
	})
	return s.transpiler, s.startErr
}

// Compile implements Compiler.
func (s *SassCompiler) Compile(ctx context.Context, path, source string, includePaths []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t, err := s.start()
	if err != nil {
		return "", fmt.Errorf("start dart sass: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	res, err := t.Execute(godartsass.Args{
		Source:       source,
		URL:          "file://" + filepath.ToSlash(abs),
		IncludePaths: includePaths,
		OutputStyle:  godartsass.OutputStyleExpanded,
		SourceSyntax: godartsass.SourceSyntaxSCSS,
	})
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}

// Close stops the Dart Sass process if it was started.
func (s *SassCompiler) Close() error {
	if s.transpiler == nil {
		return nil
	}
	return s.transpiler.Close()
}

// Package styles compiles SCSS sources into the site stylesheets.
package styles

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"go.uber.org/zap"
)

// Compiler turns SCSS source into plain CSS.
type Compiler interface {
	Compile(ctx context.Context, path, source string, includePaths []string) (string, error)
}

// KeepSelectors are structural selectors that must survive minification.
var KeepSelectors = []string{"body", "html", "main", "header", "footer", "nav", "article", "section"}

// DefaultTargets are the browser engines the prefix pass lowers syntax for.
var DefaultTargets = []api.Engine{
	{Name: api.EngineChrome, Version: "87"},
	{Name: api.EngineFirefox, Version: "78"},
	{Name: api.EngineSafari, Version: "14"},
	{Name: api.EngineEdge, Version: "88"},
}

// Options configures a Processor.
type Options struct {
	Release      bool
	IncludePaths []string
	Targets      []api.Engine
	Keep         []string
}

func (o *Options) setDefaults() {
	if len(o.Targets) == 0 {
		o.Targets = DefaultTargets
	}
	if len(o.Keep) == 0 {
		o.Keep = KeepSelectors
	}
}

// Processor runs the compile, prefix and minify passes for one build.
type Processor struct {
	opts     Options
	compiler Compiler
	minifier *minify.M
	log      *zap.Logger
}

// New returns a Processor using compiler for the SCSS pass.
func New(opts Options, compiler Compiler, logger *zap.Logger) *Processor {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	return &Processor{
		opts:     opts,
		compiler: compiler,
		minifier: m,
		log:      logger.Named("styles"),
	}
}

// IsPartial reports whether path names an include-only SCSS file.
func IsPartial(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "_")
}

// Process compiles one SCSS file. ok is false for partials, which produce no
// output of their own. Compile errors are logged and yield an empty
// stylesheet with ok set, so the build carries on.
func (p *Processor) Process(ctx context.Context, path, content string) (cssOut []byte, ok bool) {
	if IsPartial(path) {
		return nil, false
	}
	out, err := p.transform(ctx, path, content)
	if err != nil {
		p.log.Error("stylesheet failed, writing empty output",
			zap.String("path", path),
			zap.Error(err),
		)
		return []byte{}, true
	}
	return out, true
}

func (p *Processor) transform(ctx context.Context, path, content string) ([]byte, error) {
	if p.compiler == nil {
		return nil, fmt.Errorf("no SCSS compiler configured")
	}
	includes := append([]string{filepath.Dir(path)}, p.opts.IncludePaths...)
	compiled, err := p.compiler.Compile(ctx, path, content, includes)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	prefixed, err := p.prefix(path, compiled)
	if err != nil {
		return nil, err
	}
	if !p.opts.Release {
		return []byte(prefixed), nil
	}
	return p.minify(path, prefixed)
}

// prefix lowers modern syntax and adds vendor prefixes for the target engines.
func (p *Processor) prefix(path, source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    p.opts.Targets,
		Sourcefile: path,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("prefix: %s", result.Errors[0].Text)
	}
	return string(result.Code), nil
}

// minify compresses source and strips comments. When a kept selector present
// in the input goes missing, the unminified CSS is used with comments removed.
func (p *Processor) minify(path, source string) ([]byte, error) {
	out, err := p.minifier.String("text/css", source)
	if err != nil {
		return nil, fmt.Errorf("minify: %w", err)
	}
	if lost := missingSelectors(source, out, p.opts.Keep); len(lost) > 0 {
		p.log.Warn("minifier dropped structural selectors, keeping readable CSS",
			zap.String("path", path),
			zap.Strings("selectors", lost),
		)
		return []byte(stripComments(source)), nil
	}
	return []byte(out), nil
}

var commentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

func stripComments(s string) string {
	return commentRe.ReplaceAllString(s, "")
}

func missingSelectors(before, after string, keep []string) []string {
	var lost []string
	for _, sel := range keep {
		re := selectorRe(sel)
		if re.MatchString(stripComments(before)) && !re.MatchString(after) {
			lost = append(lost, sel)
		}
	}
	return lost
}

func selectorRe(sel string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[\s,{}>+~(])` + regexp.QuoteMeta(sel) + `([\s,{:.\[>+~#)]|$)`)
}

// CompileTree compiles every non-partial .scss file below srcDir into a
// matching .css file below outDir and returns how many were written.
func (p *Processor) CompileTree(ctx context.Context, srcDir, outDir string) (int, error) {
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return 0, nil
	}
	written := 0
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".scss" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out, ok := p.Process(ctx, path, string(raw))
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(outDir, strings.TrimSuffix(rel, ".scss")+".css")
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, bytes.TrimSpace(out), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
		written++
		return nil
	})
	return written, err
}

// Package scripts bundles the site JavaScript entry point with esbuild.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrNoEntry is returned when the entry point does not exist.
var ErrNoEntry = errors.New("script entry point not found")

// Options configures one bundle.
type Options struct {
	Entry   string // e.g. src/assets/js/index.js
	Outfile string // e.g. _site/assets/js/bundle.js
	Release bool
	Target  api.Target
	Define  map[string]string
}

// Result lists the files esbuild wrote.
type Result struct {
	Files    []string
	Warnings []string
}

// Bundle resolves imports from Entry and writes a single bundle to Outfile.
// Release bundles are minified with console and debugger statements dropped;
// development bundles keep a linked source map.
func Bundle(ctx context.Context, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(opts.Entry); err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrNoEntry, opts.Entry)
		}
		return Result{}, err
	}
	if opts.Target == api.DefaultTarget {
		opts.Target = api.ES2020
	}

	build := api.BuildOptions{
		EntryPoints: []string{opts.Entry},
		Outfile:     opts.Outfile,
		Bundle:      true,
		Write:       true,
		Format:      api.FormatIIFE,
		Platform:    api.PlatformBrowser,
		Target:      opts.Target,
		TreeShaking: api.TreeShakingTrue,
		Define:      opts.Define,
		LogLevel:    api.LogLevelSilent,
	}
	if opts.Release {
		build.MinifyWhitespace = true
		build.MinifyIdentifiers = true
		build.MinifySyntax = true
		build.Drop = api.DropConsole | api.DropDebugger
		build.LegalComments = api.LegalCommentsNone
	} else {
		build.Sourcemap = api.SourceMapLinked
	}

	res := api.Build(build)
	if len(res.Errors) > 0 {
		msgs := make([]string, len(res.Errors))
		for i, m := range res.Errors {
			msgs[i] = formatMessage(m)
		}
		return Result{}, fmt.Errorf("bundle %s: %s", opts.Entry, strings.Join(msgs, "; "))
	}

	out := Result{}
	for _, f := range res.OutputFiles {
		out.Files = append(out.Files, filepath.Clean(f.Path))
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, formatMessage(w))
	}
	return out, nil
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}

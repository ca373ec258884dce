package styles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// passthrough treats its input as already-compiled CSS.
type passthrough struct {
	calls []string
}

func (p *passthrough) Compile(_ context.Context, path, source string, _ []string) (string, error) {
	p.calls = append(p.calls, filepath.Base(path))
	if strings.Contains(source, "@error") {
		return "", errors.New("sass: forced error")
	}
	return source, nil
}

const sample = `/* layout rules */
html { margin: 0; }
body {
  color: #ff0000;
  font-family: sans-serif;
}
nav > a { padding: 0px 4px; }
.card { user-select: none; }
`

func TestIsPartial(t *testing.T) {
	require.True(t, IsPartial("src/styles/_vars.scss"))
	require.False(t, IsPartial("src/styles/main.scss"))
	require.False(t, IsPartial("src/_styles/main.scss"))
}

func TestProcessSkipsPartials(t *testing.T) {
	c := &passthrough{}
	p := New(Options{}, c, nil)
	out, ok := p.Process(context.Background(), "src/styles/_vars.scss", "$a: 1;")
	require.False(t, ok)
	require.Nil(t, out)
	require.Empty(t, c.calls)
}

func TestProcessFailSoft(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := New(Options{}, &passthrough{}, zap.New(core))

	out, ok := p.Process(context.Background(), "main.scss", "@error 'x';")
	require.True(t, ok)
	require.Empty(t, out)
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "main.scss", logs.All()[0].ContextMap()["path"])
}

func TestProcessWithoutCompilerIsFailSoft(t *testing.T) {
	out, ok := New(Options{}, nil, nil).Process(context.Background(), "main.scss", "a{}")
	require.True(t, ok)
	require.Empty(t, out)
}

func TestProcessDevelopmentKeepsReadableCSS(t *testing.T) {
	out, ok := New(Options{}, &passthrough{}, nil).Process(context.Background(), "main.scss", sample)
	require.True(t, ok)
	css := string(out)
	require.Contains(t, css, "body {")
	require.Contains(t, css, "\n")
}

func TestProcessReleaseMinifies(t *testing.T) {
	out, ok := New(Options{Release: true}, &passthrough{}, nil).Process(context.Background(), "main.scss", sample)
	require.True(t, ok)
	css := string(out)
	require.NotContains(t, css, "layout rules")
	require.NotContains(t, css, "/*")
	require.Contains(t, css, "body{")
	require.Contains(t, css, "nav>a")
	require.Contains(t, css, "html{")
	require.Less(t, len(css), len(sample))
}

func TestMissingSelectors(t *testing.T) {
	before := "body{color:red}nav a{x:y}/* footer */"
	require.Empty(t, missingSelectors(before, "body{color:red}nav a{x:y}", KeepSelectors))
	require.Equal(t, []string{"body"}, missingSelectors(before, ".bodyx{color:red}nav a{x:y}", KeepSelectors))
	// Names inside comments or class names are not selectors.
	require.Empty(t, missingSelectors(".navbar{x:y}/* body */", "", KeepSelectors))
}

func TestCompileTree(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "pages"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.scss"), []byte(sample), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "_vars.scss"), []byte("$x: 1;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pages", "episode.scss"), []byte("@error 'broken';"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o644))

	n, err := New(Options{}, &passthrough{}, nil).CompileTree(context.Background(), src, out)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = os.Stat(filepath.Join(out, "_vars.css"))
	require.True(t, os.IsNotExist(err))

	main, err := os.ReadFile(filepath.Join(out, "main.css"))
	require.NoError(t, err)
	require.Contains(t, string(main), "body")

	broken, err := os.ReadFile(filepath.Join(out, "pages", "episode.css"))
	require.NoError(t, err)
	require.Empty(t, broken)
}

func TestCompileTreeMissingSource(t *testing.T) {
	n, err := New(Options{}, &passthrough{}, nil).CompileTree(context.Background(), filepath.Join(t.TempDir(), "none"), t.TempDir())
	require.NoError(t, err)
	require.Zero(t, n)
}

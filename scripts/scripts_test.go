package scripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSources(t *testing.T) (entry, outfile string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "assets", "js")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "player.js"), []byte(`
export class AudioPlayer {
  constructor(element) {
    this.element = element;
  }
  init() {
    console.log("player ready");
    debugger;
    return this.element;
  }
}
export function unused() { return "unused-helper-marker"; }
`), 0o644))
	entry = filepath.Join(src, "index.js")
	require.NoError(t, os.WriteFile(entry, []byte(`
import { AudioPlayer } from "./player.js";
window.podsitePlayer = new AudioPlayer(document.body).init();
`), 0o644))
	return entry, filepath.Join(dir, "_site", "assets", "js", "bundle.js")
}

func TestBundleRelease(t *testing.T) {
	entry, outfile := writeSources(t)
	res, err := Bundle(context.Background(), Options{Entry: entry, Outfile: outfile, Release: true})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	data, err := os.ReadFile(outfile)
	require.NoError(t, err)
	js := string(data)
	require.Contains(t, js, "podsitePlayer")
	require.NotContains(t, js, "player ready")
	require.NotContains(t, js, "debugger")
	require.NotContains(t, js, "unused-helper-marker")

	_, err = os.Stat(outfile + ".map")
	require.True(t, os.IsNotExist(err))
}

func TestBundleDevelopmentWritesSourceMap(t *testing.T) {
	entry, outfile := writeSources(t)
	res, err := Bundle(context.Background(), Options{Entry: entry, Outfile: outfile})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	data, err := os.ReadFile(outfile)
	require.NoError(t, err)
	require.Contains(t, string(data), "player ready")
	require.Contains(t, string(data), "sourceMappingURL=bundle.js.map")

	_, err = os.Stat(outfile + ".map")
	require.NoError(t, err)
}

func TestBundleMissingEntry(t *testing.T) {
	_, err := Bundle(context.Background(), Options{Entry: filepath.Join(t.TempDir(), "nope.js"), Outfile: "x.js"})
	require.ErrorIs(t, err, ErrNoEntry)
}

func TestBundleSyntaxError(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "index.js")
	require.NoError(t, os.WriteFile(entry, []byte("import { x from './y.js';"), 0o644))
	_, err := Bundle(context.Background(), Options{Entry: entry, Outfile: filepath.Join(dir, "out.js")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "index.js")
}

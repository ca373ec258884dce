package images

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func writePNG(t testing.TB, path string, w, h int, seed uint8) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x) + seed, G: uint8(y) * seed, B: seed, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func newTestTransformer(t testing.TB, root string, formats ...Format) *Transformer {
	if len(formats) == 0 {
		formats = []Format{PNG, JPEG}
	}
	return New(Options{
		SourceDir: root,
		OutputDir: filepath.Join(root, "_site", "img"),
		Widths:    []int{8, 16, 64},
		Formats:   formats,
	}, nil)
}

func TestShortcodeRequiresSourceAndAlt(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "src", "img", "cover.png"), 32, 16, 1)
	tr := newTestTransformer(t, root)
	ctx := context.Background()

	for _, src := range []string{"", "   ", "src/img/cover.png", "src/img/missing.png"} {
		for _, alt := range []string{"", "  ", "A cover"} {
			_, err := tr.Shortcode(ctx, src, alt)
			switch {
			case strings.TrimSpace(src) == "":
				require.ErrorIs(t, err, ErrMissingSource, "src=%q alt=%q", src, alt)
			case strings.TrimSpace(alt) == "":
				require.ErrorIs(t, err, ErrMissingAltText, "src=%q alt=%q", src, alt)
			case strings.Contains(src, "missing"):
				require.ErrorIs(t, err, ErrMissingSource, "src=%q alt=%q", src, alt)
			default:
				require.NoError(t, err, "src=%q alt=%q", src, alt)
			}
		}
	}
}

func TestShortcodeMarkup(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "src", "img", "cover.png"), 32, 16, 2)
	tr := newTestTransformer(t, root, PNG, JPEG)

	html, err := tr.Shortcode(context.Background(), "/src/img/cover.png", `Mic "close-up"`, "(min-width: 800px) 50vw")
	require.NoError(t, err)

	res, err := tr.Process(context.Background(), "src/img/cover.png")
	require.NoError(t, err)
	require.Equal(t, []int{8, 16, 32}, widthsOf(res.Sets[0]))
	require.Equal(t, 1, tr.Sources())

	require.True(t, strings.HasPrefix(html, "<picture>"), html)
	require.Contains(t, html, `<source type="image/png" srcset="/img/`+FileName(res.Hash, 8, PNG)+` 8w`)
	require.Contains(t, html, `src="/img/`+FileName(res.Hash, 8, JPEG)+`"`)
	require.Contains(t, html, `width="32" height="16"`)
	require.Contains(t, html, `alt="Mic &#34;close-up&#34;"`)
	require.Contains(t, html, `loading="lazy" decoding="async"`)
	require.Contains(t, html, `sizes="(min-width: 800px) 50vw"`)
	require.True(t, strings.HasSuffix(html, "</picture>"), html)

	for _, set := range res.Sets {
		for _, out := range set.Outputs {
			_, err := os.Stat(filepath.Join(root, "_site", "img", out.Filename))
			require.NoError(t, err, out.Filename)
			require.Positive(t, out.Size)
		}
	}
}

func TestShortcodeSingleFormatDefaultsSizes(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 4, 4, 3)
	tr := newTestTransformer(t, root, JPEG)

	html, err := tr.Shortcode(context.Background(), "a.png", "tiny")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(html, "<img "), html)
	require.NotContains(t, html, "srcset")
	require.Contains(t, html, `width="4" height="4"`)
}

func TestProcessRejectsUndecodable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.png"), []byte("not an image"), 0o644))
	_, err := newTestTransformer(t, root).Process(context.Background(), "bad.png")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMissingSource)
}

func TestProcessSkipsExistingVariants(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 20, 10, 4)

	first, err := newTestTransformer(t, root).Process(context.Background(), "a.png")
	require.NoError(t, err)
	target := filepath.Join(root, "_site", "img", first.Sets[0].Outputs[0].Filename)
	require.NoError(t, os.WriteFile(target, []byte("sentinel"), 0o644))

	_, err = newTestTransformer(t, root).Process(context.Background(), "a.png")
	require.NoError(t, err)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "sentinel", string(got))
}

func TestFileNamesAreContentAddressed(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := rapid.IntRange(1, 48).Draw(rt, "w")
		h := rapid.IntRange(1, 48).Draw(rt, "h")
		seed := rapid.Uint8().Draw(rt, "seed")

		var names [2][]string
		for run := range names {
			root := t.TempDir()
			// Different source paths per run; names depend on bytes only.
			src := filepath.Join("src", "run"+string(rune('a'+run)), "pic.png")
			writePNG(t, filepath.Join(root, src), w, h, seed)

			res, err := newTestTransformer(t, root).Process(context.Background(), src)
			if err != nil {
				rt.Fatalf("process: %v", err)
			}
			for _, set := range res.Sets {
				for _, out := range set.Outputs {
					names[run] = append(names[run], out.Filename)
				}
			}
		}
		require.Equal(rt, names[0], names[1])
	})
}

func TestTargetWidths(t *testing.T) {
	require.Equal(t, []int{300, 900}, targetWidths([]int{300, 900}, 1200))
	require.Equal(t, []int{300, 1000}, targetWidths([]int{300, 1600, 2000}, 1000))
	require.Equal(t, []int{50}, targetWidths([]int{300, 900}, 50))
	require.Equal(t, []int{640}, targetWidths(nil, 640))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JPG")
	require.NoError(t, err)
	require.Equal(t, JPEG, f)
	_, err = ParseFormat("tiff")
	require.Error(t, err)
}

func TestModernEncoders(t *testing.T) {
	if testing.Short() {
		t.Skip("wasm encoders are slow")
	}
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 16, 16, 5)
	res, err := newTestTransformer(t, root, AVIF, WebP, JPEG).Process(context.Background(), "a.png")
	require.NoError(t, err)
	require.Len(t, res.Sets, 3)
	require.Equal(t, AVIF, res.Sets[0].Format)
	require.Positive(t, res.Sets[1].Outputs[0].Size)
}

func widthsOf(set Set) []int {
	out := make([]int, len(set.Outputs))
	for i, o := range set.Outputs {
		out[i] = o.Width
	}
	return out
}

// Package images generates responsive image variants and the markup that
// references them.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

var (
	// ErrMissingSource is returned when a shortcode has no source or the
	// source file does not exist.
	ErrMissingSource = errors.New("image source is required")
	// ErrMissingAltText is returned when a shortcode has no alt text.
	ErrMissingAltText = errors.New("image alt text is required")
)

// Format is an output encoding.
type Format string

const (
	AVIF Format = "avif"
	WebP Format = "webp"
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "avif":
		return AVIF, nil
	case "webp":
		return WebP, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// MIME returns the content type of the format.
func (f Format) MIME() string {
	return "image/" + string(f)
}

func (f Format) legacy() bool {
	return f == JPEG || f == PNG
}

var (
	DefaultWidths  = []int{300, 900, 1600, 2000, 3000}
	DefaultFormats = []Format{AVIF, WebP, JPEG}
)

const (
	DefaultQuality = 80
	DefaultSizes   = "100vw"
	hashLength     = 10
)

// Options configures a Transformer.
type Options struct {
	SourceDir string // project root that relative sources resolve against
	OutputDir string // directory generated files are written to
	URLPath   string // public path of OutputDir, e.g. /img/
	Widths    []int
	Formats   []Format
	Quality   int
}

func (o *Options) setDefaults() {
	if o.URLPath == "" {
		o.URLPath = "/img/"
	}
	if !strings.HasSuffix(o.URLPath, "/") {
		o.URLPath += "/"
	}
	if len(o.Widths) == 0 {
		o.Widths = DefaultWidths
	}
	if len(o.Formats) == 0 {
		o.Formats = DefaultFormats
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
}

// Output is one generated file.
type Output struct {
	Format   Format
	Width    int
	Height   int
	Filename string
	URL      string
	Size     int64
}

// Set groups the outputs of one format in ascending width order.
type Set struct {
	Format  Format
	Outputs []Output
}

// Result describes every file generated for one source image.
type Result struct {
	Source string
	Hash   string
	Width  int // source dimensions
	Height int
	Sets   []Set // in requested format order
}

// Largest returns the widest output of the first set.
func (r Result) Largest() Output {
	if len(r.Sets) == 0 || len(r.Sets[0].Outputs) == 0 {
		return Output{}
	}
	outs := r.Sets[0].Outputs
	return outs[len(outs)-1]
}

// Transformer turns source images into sized, re-encoded variants. Results
// are memoized per source content so a page set that reuses an image only
// encodes it once per build.
type Transformer struct {
	opts  Options
	log   *zap.Logger
	cache *resultCache
}

// New returns a Transformer writing to opts.OutputDir.
func New(opts Options, logger *zap.Logger) *Transformer {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{
		opts:  opts,
		log:   logger.Named("images"),
		cache: newResultCache(),
	}
}

// FileName returns the content-addressed name of one variant.
func FileName(hash string, width int, format Format) string {
	return fmt.Sprintf("%s-%d.%s", hash, width, format)
}

// Hash returns the short content hash used in generated file names.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashLength]
}

// Process generates every (width, format) variant of src that does not
// already exist in the output directory.
func (t *Transformer) Process(ctx context.Context, src string) (Result, error) {
	if strings.TrimSpace(src) == "" {
		return Result{}, ErrMissingSource
	}
	abs := t.resolve(src)
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingSource, src)
		}
		return Result{}, fmt.Errorf("read image %s: %w", src, err)
	}
	hash := Hash(data)

	return t.cache.getOrCreate(hash, func() (Result, error) {
		return t.generate(ctx, src, hash, data)
	})
}

func (t *Transformer) resolve(src string) string {
	if filepath.IsAbs(src) {
		if _, err := os.Stat(src); err == nil || t.opts.SourceDir == "" {
			return src
		}
	}
	clean := strings.TrimPrefix(filepath.FromSlash(src), string(filepath.Separator))
	return filepath.Join(t.opts.SourceDir, clean)
}

func (t *Transformer) generate(ctx context.Context, src, hash string, data []byte) (Result, error) {
	cfg, _, err := image.DecodeConfig(bytesReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image %s: %w", src, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Result{}, fmt.Errorf("decode image %s: empty image", src)
	}
	if err := os.MkdirAll(t.opts.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create image output dir: %w", err)
	}

	widths := targetWidths(t.opts.Widths, cfg.Width)
	res := Result{Source: src, Hash: hash, Width: cfg.Width, Height: cfg.Height}

	var (
		decoded image.Image
		resized = make(map[int]image.Image)
		written int
	)
	for _, format := range t.opts.Formats {
		set := Set{Format: format}
		for _, w := range widths {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			name := FileName(hash, w, format)
			out := Output{
				Format:   format,
				Width:    w,
				Height:   scaledHeight(cfg.Width, cfg.Height, w),
				Filename: name,
				URL:      path.Join(t.opts.URLPath, name),
			}
			dst := filepath.Join(t.opts.OutputDir, name)
			if info, err := os.Stat(dst); err == nil {
				out.Size = info.Size()
				set.Outputs = append(set.Outputs, out)
				continue
			}

			if decoded == nil {
				decoded, _, err = image.Decode(bytesReader(data))
				if err != nil {
					return Result{}, fmt.Errorf("decode image %s: %w", src, err)
				}
			}
			img, ok := resized[w]
			if !ok {
				img = resize(decoded, w, out.Height)
				resized[w] = img
			}
			size, err := writeEncoded(dst, img, format, t.opts.Quality)
			if err != nil {
				return Result{}, fmt.Errorf("encode %s as %s: %w", src, format, err)
			}
			out.Size = size
			written++
			t.log.Debug("image variant written",
				zap.String("source", src),
				zap.String("file", name),
				zap.String("size", humanize.Bytes(uint64(size))),
			)
			set.Outputs = append(set.Outputs, out)
		}
		res.Sets = append(res.Sets, set)
	}
	if written > 0 {
		t.log.Info("image processed",
			zap.String("source", src),
			zap.Int("variants", written),
			zap.Ints("widths", widths),
		)
	}
	return res, nil
}

// targetWidths drops widths that would upscale the source. Any such width is
// replaced by the source width itself.
func targetWidths(requested []int, sourceWidth int) []int {
	seen := make(map[int]struct{}, len(requested))
	var out []int
	for _, w := range requested {
		if w <= 0 {
			continue
		}
		if w > sourceWidth {
			w = sourceWidth
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	if len(out) == 0 {
		out = append(out, sourceWidth)
	}
	sort.Ints(out)
	return out
}

func scaledHeight(srcW, srcH, w int) int {
	h := (srcH*w + srcW/2) / srcW
	if h < 1 {
		h = 1
	}
	return h
}

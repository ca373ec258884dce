package images

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// resize scales img to w x h. The source is returned untouched when it
// already has that size.
func resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case WebP:
		return webp.Encode(w, img, webp.Options{Quality: quality, Method: 4})
	case AVIF:
		return avif.Encode(w, img, avif.Options{Quality: quality, QualityAlpha: quality, Speed: 8})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// writeEncoded encodes into a temp file next to dst and renames it into
// place, so an interrupted build never leaves a truncated variant behind.
func writeEncoded(dst string, img image.Image, format Format, quality int) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".img-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := encode(bw, img, format, quality); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return 0, err
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

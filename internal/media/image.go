package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultCanvas  = 1664
	DefaultQuality = 85
)

// Background is the neutral letterbox fill.
var Background = color.White

// Decode reads a JPEG, PNG, GIF or WebP image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// Letterbox scales src to fit a size x size canvas, keeping its aspect
// ratio, and centers it on bg. Smaller images are scaled up.
func Letterbox(src image.Image, size int, bg color.Color) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return canvas
	}
	if w == size && h == size {
		draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Over)
		return canvas
	}

	tw, th := size, size
	if w >= h {
		th = h * size / w
	} else {
		tw = w * size / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	x := (size - tw) / 2
	y := (size - th) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x, y, x+tw, y+th), src, b, draw.Over, nil)
	return canvas
}

// Encode writes img in format ("jpeg" or "png").
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		if quality <= 0 || quality > 100 {
			quality = DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// FormatExt returns the file extension written for format.
func FormatExt(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return ".jpg"
	case "png":
		return ".png"
	}
	return ""
}

// Normalize decodes data, letterboxes it and encodes it once per format.
func Normalize(data []byte, size int, formats []string, quality int) (map[string][]byte, error) {
	src, _, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	canvas := Letterbox(src, size, Background)

	out := make(map[string][]byte, len(formats))
	for _, f := range formats {
		var buf bytes.Buffer
		if err := Encode(&buf, canvas, f, quality); err != nil {
			return nil, err
		}
		out[strings.ToLower(f)] = buf.Bytes()
	}
	return out, nil
}

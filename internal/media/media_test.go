package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolution(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://rukminim2.flixcart.com/image/1664/1664/xif0q/mobile/a/b/c.jpeg?q=90", "1664x1664"},
		{"https://rukminim2.flixcart.com/image/416/416/x.jpeg", "416x416"},
		{"https://m.media-amazon.com/images/I/71d7rfSl0wL._SL1500_.jpg", "1500x1500"},
		{"https://m.media-amazon.com/images/I/61abc._AC_UL320_.jpg", "320x320"},
		{"https://m.media-amazon.com/images/I/61abc._SX679_.jpg", "679x679"},
		{"https://cdn.test/2024/05/image.png", "unknown"},
		{"https://cdn.test/image.png", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolution(tt.url), tt.url)
	}
}

func TestFileName(t *testing.T) {
	name := FileName("Apple iPhone 13 (Blue/Red, 128 GB)", 7, "https://rukminim2.flixcart.com/image/1664/1664/a.jpeg?q=90")
	pattern := regexp.MustCompile(`^Apple iPhone 13 \(Blue-Red, 128 GB\)_original_007_1664x1664_[0-9a-f]{8}\.jpeg$`)
	assert.Regexp(t, pattern, name)

	assert.NotEqual(t, FileName("a", 1, "x.png"), FileName("a", 1, "x.png"), "ids are random")
	assert.Len(t, []rune(ProductDir(strings.Repeat("x", 80))), maxProductPart)
	assert.Equal(t, "product", ProductDir("  "))
	assert.Equal(t, ".jpg", Extension("https://cdn.test/image"))
	assert.Equal(t, ".webp", Extension("https://cdn.test/a.WEBP?x=1"))
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLetterboxCentersOnBackground(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	out := Letterbox(solid(200, 100, red), 64, color.White)
	require.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())

	r, g, b, _ := out.At(32, 2).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "band above image is background")

	r, g, _, _ = out.At(32, 32).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Less(t, g, uint32(0x1000))

	tall := Letterbox(solid(50, 100, red), 64, color.White)
	_, g, _, _ = tall.At(2, 32).RGBA()
	assert.Equal(t, uint32(0xffff), g, "band left of image is background")

	same := Letterbox(solid(64, 64, red), 64, color.White)
	r, _, _, _ = same.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestNormalizeEncodesEachFormat(t *testing.T) {
	data := pngBytes(t, solid(30, 20, color.Black))

	out, err := Normalize(data, 40, []string{"jpeg", "png"}, 90)
	require.NoError(t, err)
	require.Len(t, out, 2)

	img, format, err := Decode(bytes.NewReader(out["jpeg"]))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 40, img.Bounds().Dx())

	_, err = Normalize(data, 40, []string{"tiff"}, 90)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Normalize([]byte("not an image"), 40, []string{"png"}, 90)
	assert.Error(t, err)
}

func TestDownloaderFetch(t *testing.T) {
	body := pngBytes(t, solid(2, 2, color.White))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	d := NewDownloader(0, 1, nil)
	got, err := d.Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, err = d.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrDownloadFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDownloader(0.001, 1, nil).Fetch(ctx, srv.URL+"/a.png")
	assert.Error(t, err)
}

type stubFetcher struct {
	data map[string][]byte
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if d, ok := s.data[url]; ok {
		return d, nil
	}
	return nil, ErrDownloadFailed
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	img := pngBytes(t, solid(20, 10, color.Black))
	fetcher := &stubFetcher{data: map[string][]byte{
		"https://img.test/image/416/416/a.png": img,
		"https://img.test/b.png":               img,
	}}

	p := NewPipeline(fetcher, Options{
		OriginalsDir: filepath.Join(dir, "originals"),
		StyledDir:    filepath.Join(dir, "styled"),
		Canvas:       32,
		Formats:      []string{"jpeg", "png"},
		Workers:      2,
	}, nil)
	assert.Equal(t, []string{".jpg", ".png"}, p.Extensions())

	res, err := p.Run(context.Background(), map[string][]string{
		"Pixel 8": {"https://img.test/image/416/416/a.png", "https://img.test/broken.png"},
		"Galaxy":  {"https://img.test/b.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Downloaded)
	assert.Equal(t, 4, res.Normalized)
	assert.Equal(t, 1, res.Failed)

	styled, err := filepath.Glob(filepath.Join(dir, "styled", "Pixel 8", "Pixel 8_original_001_416x416_*.jpg"))
	require.NoError(t, err)
	assert.Len(t, styled, 1)
	originals, err := filepath.Glob(filepath.Join(dir, "originals", "*", "*.png"))
	require.NoError(t, err)
	assert.Len(t, originals, 2)

	_, err = NewPipeline(fetcher, Options{Formats: []string{"bmp"}}, nil).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

type recordingUploader struct {
	mu      sync.Mutex
	remotes []string
	fail    string
}

func (u *recordingUploader) Upload(ctx context.Context, localPath, remotePath string) (string, error) {
	if filepath.Base(localPath) == u.fail {
		return "", errors.New("552 quota exceeded")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.remotes = append(u.remotes, remotePath)
	return "https://cdn.test/" + SanitizePath(remotePath), nil
}

func (u *recordingUploader) Close() error { return nil }

func TestUploadDir(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"Pixel 8/a.jpg", "Pixel 8/b.png", "Pixel 8/notes.txt", "Galaxy/c.jpg"} {
		p := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	up := &recordingUploader{fail: "b.png"}
	links, err := UploadDir(context.Background(), up, dir, "images", []string{".jpg", ".png"}, nil)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, Link{FileName: "c.jpg", URL: "https://cdn.test/images/Galaxy/c.jpg"}, links[0])
	assert.Equal(t, "https://cdn.test/images/Pixel_8/a.jpg", links[1].URL)
}

func TestSanitizeAndPublicURL(t *testing.T) {
	assert.Equal(t, "images/Apple_iPhone_13_Blue_128_GB/a.jpg", SanitizePath(`images\Apple iPhone 13 (Blue, 128 GB)/a.jpg`))

	cfg := FTPConfig{PublicURL: "https://data.example.test/", StripPrefix: "/domains/example.test/public_html/"}
	assert.Equal(t, "https://data.example.test/images/a.jpg", cfg.PublicURLFor("domains/example.test/public_html/images/a.jpg"))
	assert.Equal(t, "https://data.example.test/images/a.jpg", cfg.PublicURLFor("/images/a.jpg"))
}

package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	// OriginalsDir receives downloaded files as <product>/<file>.
	OriginalsDir string
	// StyledDir receives normalized files as <product>/<file>.<format>.
	StyledDir string
	Canvas    int
	Formats   []string
	Quality   int
	Workers   int
}

func (o *Options) defaults() {
	if o.Canvas <= 0 {
		o.Canvas = DefaultCanvas
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{"jpeg"}
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
}

// Result summarizes one pipeline run.
type Result struct {
	Downloaded int
	Normalized int
	Failed     int
	Files      []string
}

type Pipeline struct {
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger
}

func NewPipeline(fetcher Fetcher, opts Options, logger *slog.Logger) *Pipeline {
	opts.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{fetcher: fetcher, opts: opts, logger: logger.With("component", "media")}
}

// Extensions lists the file extensions the pipeline writes.
func (p *Pipeline) Extensions() []string {
	var exts []string
	for _, f := range p.opts.Formats {
		if e := FormatExt(f); e != "" {
			exts = append(exts, e)
		}
	}
	return exts
}

// Run downloads and normalizes the images of every product. A failed image is
// counted and logged; only context cancellation stops the run.
func (p *Pipeline) Run(ctx context.Context, images map[string][]string) (*Result, error) {
	for _, f := range p.opts.Formats {
		if FormatExt(f) == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
		}
	}

	products := make([]string, 0, len(images))
	for name := range images {
		products = append(products, name)
	}
	sort.Strings(products)

	var mu sync.Mutex
	res := &Result{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, name := range products {
		for i, url := range images[name] {
			name, seq, url := name, i+1, url
			g.Go(func() error {
				files, err := p.process(gctx, name, seq, url)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					res.Failed++
					p.logger.Warn("failed to process image", "product", name, "url", url, "error", err)
					return nil
				}
				res.Downloaded++
				res.Normalized += len(files)
				res.Files = append(res.Files, files...)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	sort.Strings(res.Files)

	p.logger.Info("image pipeline finished",
		"downloaded", res.Downloaded, "normalized", res.Normalized, "failed", res.Failed)
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, product string, seq int, url string) ([]string, error) {
	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	dir := ProductDir(product)
	name := FileName(product, seq, url)
	if p.opts.OriginalsDir != "" {
		if err := writeFile(filepath.Join(p.opts.OriginalsDir, dir, name), data); err != nil {
			return nil, err
		}
	}

	encoded, err := Normalize(data, p.opts.Canvas, p.opts.Formats, p.opts.Quality)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	var files []string
	for _, f := range p.opts.Formats {
		out := filepath.Join(p.opts.StyledDir, dir, base+FormatExt(f))
		if err := writeFile(out, encoded[strings.ToLower(f)]); err != nil {
			return nil, err
		}
		files = append(files, out)
	}
	return files, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

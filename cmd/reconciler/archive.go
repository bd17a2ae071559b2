package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/maltedev/catalog-scraper/internal/config"
)

const batchStampLayout = "2006-01-02_15-04-05"

// archiveBatch moves the finished batch into <BatchDir>/<stamp>/ with data,
// images and logs subfolders. Missing sources are skipped. The audit log is
// copied because the logger still holds it open.
func archiveBatch(cfg *config.Config, input string, now time.Time) (string, error) {
	root := filepath.Join(cfg.Files.BatchDir, now.Format(batchStampLayout))

	moves := []struct {
		src, sub string
	}{
		{input, "data"},
		{cfg.Files.Output, "data"},
		{cfg.Files.Links, "data"},
		{cfg.Media.OriginalsDir, "images"},
		{cfg.Media.StyledDir, "images"},
	}
	for _, m := range moves {
		if err := moveInto(m.src, filepath.Join(root, m.sub)); err != nil {
			return root, err
		}
	}

	if cfg.Logging.AuditFile != "" {
		if err := copyInto(cfg.Logging.AuditFile, filepath.Join(root, "logs")); err != nil {
			return root, err
		}
	}
	return root, nil
}

func moveInto(src, dir string) error {
	if src == "" {
		return nil
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	if err := os.Rename(src, filepath.Join(dir, filepath.Base(src))); err != nil {
		return fmt.Errorf("failed to archive %s: %w", src, err)
	}
	return nil
}

func copyInto(src, dir string) error {
	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	out, err := os.Create(filepath.Join(dir, filepath.Base(src)))
	if err != nil {
		return fmt.Errorf("failed to create archive copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// Package storage keeps the catalog in a JSON file for runs without a database.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// FileStore is a catalog.Store that rewrites its file after every upsert.
type FileStore struct {
	*catalog.MemoryStore

	mu       sync.Mutex
	filename string
}

func NewFileStore(filename string) (*FileStore, error) {
	fs := &FileStore{
		MemoryStore: catalog.NewMemoryStore(),
		filename:    filename,
	}

	if err := fs.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return fs, nil
}

func (fs *FileStore) Upsert(ctx context.Context, rec *models.ProductRecord) error {
	if err := fs.MemoryStore.Upsert(ctx, rec); err != nil {
		return err
	}
	if err := fs.save(ctx); err != nil {
		return &catalog.PersistenceError{Identity: rec.Identity, Err: err}
	}
	return nil
}

// Stats counts records per category plus a "total" entry.
func (fs *FileStore) Stats(ctx context.Context) (map[string]int, error) {
	records, err := fs.List(ctx, "", 0, 0)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int)
	for _, rec := range records {
		stats[rec.Category]++
	}
	stats["total"] = len(records)
	return stats, nil
}

func (fs *FileStore) save(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	records, err := fs.List(ctx, "", 0, 0)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fs.filename), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog dir: %w", err)
	}
	// Write to temp file first for atomicity
	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, fs.filename)
}

func (fs *FileStore) Load() error {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		return err
	}

	var records []*models.ProductRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to decode catalog file %s: %w", fs.filename, err)
	}
	fs.Restore(records)
	return nil
}

var _ catalog.Store = (*FileStore)(nil)

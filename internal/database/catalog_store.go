package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// CatalogStore is the Postgres catalog.Store. Each upsert writes a catalog
// event to the outbox in the same transaction.
type CatalogStore struct {
	db     *DB
	outbox *OutboxRepository
	stream string
	logger *slog.Logger
}

func NewCatalogStore(db *DB, stream string, logger *slog.Logger) *CatalogStore {
	if stream == "" {
		stream = DefaultCatalogStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogStore{
		db:     db,
		outbox: NewOutboxRepository(db),
		stream: stream,
		logger: logger.With("component", "catalog_store"),
	}
}

var _ catalog.Store = (*CatalogStore)(nil)

const selectColumns = `
	product_name, model_name, color, category,
	specifications, images, offers, source, last_updated`

func (s *CatalogStore) Upsert(ctx context.Context, rec *models.ProductRecord) error {
	if problems := rec.Validate(); len(problems) > 0 {
		return &catalog.PersistenceError{Identity: rec.Identity, Err: fmt.Errorf("invalid record: %v", problems)}
	}

	specs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return &catalog.PersistenceError{Identity: rec.Identity, Err: fmt.Errorf("failed to marshal specifications: %w", err)}
	}
	images, err := json.Marshal(nonNil(rec.Images))
	if err != nil {
		return &catalog.PersistenceError{Identity: rec.Identity, Err: fmt.Errorf("failed to marshal images: %w", err)}
	}
	offers, err := json.Marshal(rec.Offers)
	if err != nil {
		return &catalog.PersistenceError{Identity: rec.Identity, Err: fmt.Errorf("failed to marshal offers: %w", err)}
	}
	if rec.Offers == nil {
		offers = []byte("[]")
	}

	query := `
		INSERT INTO products (
			id, identity_key, product_name, model_name, color,
			category, specifications, images, offers, source, last_updated
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		)
		ON CONFLICT (identity_key) DO UPDATE SET
			category = EXCLUDED.category,
			specifications = EXCLUDED.specifications,
			images = EXCLUDED.images,
			offers = EXCLUDED.offers,
			source = EXCLUDED.source,
			last_updated = GREATEST(NOW(), products.last_updated + INTERVAL '1 microsecond')
		RETURNING product_name, model_name, color, last_updated, (xmax = 0) AS inserted`

	err = s.db.Transaction(ctx, func(tx pgx.Tx) error {
		var inserted bool
		var stored models.Identity
		var lastUpdated time.Time
		err := tx.QueryRow(ctx, query,
			uuid.New(), rec.Identity.Key(), rec.Identity.Name, rec.Identity.Model, rec.Identity.Color,
			rec.Category, specs, images, offers, rec.SourceList(),
		).Scan(&stored.Name, &stored.Model, &stored.Color, &lastUpdated, &inserted)
		if err != nil {
			return fmt.Errorf("failed to upsert product: %w", err)
		}

		payload, err := json.Marshal(CatalogEvent{
			Identity:    stored,
			Category:    rec.Category,
			Sources:     rec.Sources,
			ImageCount:  len(rec.Images),
			Attributes:  len(rec.Attributes),
			LastUpdated: lastUpdated,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal catalog event: %w", err)
		}

		eventType := EventRecordUpdated
		if inserted {
			eventType = EventRecordInserted
		}
		if err := s.outbox.InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: "product",
			AggregateID:   rec.Identity.Key(),
			EventType:     eventType,
			Payload:       payload,
			TargetStream:  s.stream,
		}); err != nil {
			return err
		}

		rec.LastUpdated = lastUpdated
		s.logger.Debug("catalog record upserted",
			"identity", stored.String(),
			"inserted", inserted,
			"sources", rec.SourceList())
		return nil
	})
	if err != nil {
		return &catalog.PersistenceError{Identity: rec.Identity, Err: err}
	}
	return nil
}

func (s *CatalogStore) Find(ctx context.Context, id models.Identity) (*models.ProductRecord, error) {
	row := s.db.pool.QueryRow(ctx,
		"SELECT "+selectColumns+" FROM products WHERE identity_key = $1", id.Key())

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return rec, nil
}

// List returns records ordered by identity. limit <= 0 means no limit.
func (s *CatalogStore) List(ctx context.Context, category string, limit, offset int) ([]*models.ProductRecord, error) {
	query := "SELECT " + selectColumns + ` FROM products
		WHERE ($1 = '' OR category = $1)
		ORDER BY identity_key
		LIMIT NULLIF($2::bigint, 0) OFFSET $3`

	rows, err := s.db.pool.Query(ctx, query, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var records []*models.ProductRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

func (s *CatalogStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func scanRecord(row pgx.Row) (*models.ProductRecord, error) {
	rec := &models.ProductRecord{}
	var specs, images, offers []byte
	var source string
	err := row.Scan(
		&rec.Identity.Name, &rec.Identity.Model, &rec.Identity.Color, &rec.Category,
		&specs, &images, &offers, &source, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(specs, &rec.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal specifications: %w", err)
	}
	if err := json.Unmarshal(images, &rec.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if err := json.Unmarshal(offers, &rec.Offers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offers: %w", err)
	}
	if rec.Attributes == nil {
		rec.Attributes = make(map[string]string)
	}
	rec.Sources = parseSources(source)
	return rec, nil
}

func parseSources(s string) []models.SiteID {
	out := make([]models.SiteID, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, models.SiteID(part))
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

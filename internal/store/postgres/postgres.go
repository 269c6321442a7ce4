// Package postgres implements catalog.Store on a self-hosted Postgres with
// the pgvector extension, for deployments that skip the hosted REST
// datastore.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store writes product rows into Postgres.
type Store struct {
	pool  pool
	table string
	clock catalog.Clock
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, table: table, clock: catalog.SystemClock{}}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table, clock: catalog.SystemClock{}}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Upsert inserts or updates one product row keyed by id.
func (s *Store) Upsert(ctx context.Context, p catalog.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	metadata, err := store.EncodeMetadata(p.Metadata)
	if err != nil {
		return err
	}
	var embedding any
	if literal := store.EncodeEmbedding(p.Embedding); literal != "" {
		embedding = literal
	}
	var metadataArg any
	if metadata != "" {
		metadataArg = metadata
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	source,
	brand,
	product_url,
	affiliate_url,
	title,
	description,
	price,
	currency,
	image_url,
	sizes,
	category,
	gender,
	second_hand,
	embedding,
	metadata,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
ON CONFLICT (id) DO UPDATE SET
	brand = EXCLUDED.brand,
	product_url = EXCLUDED.product_url,
	affiliate_url = EXCLUDED.affiliate_url,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	image_url = EXCLUDED.image_url,
	sizes = EXCLUDED.sizes,
	category = EXCLUDED.category,
	gender = EXCLUDED.gender,
	second_hand = EXCLUDED.second_hand,
	embedding = COALESCE(EXCLUDED.embedding, %s.embedding),
	metadata = EXCLUDED.metadata`, s.table, s.table)

	args := []any{
		p.ID,
		p.Source,
		p.Brand,
		p.ProductURL,
		p.AffiliateURL,
		p.Title,
		p.Description,
		p.Price,
		p.Currency,
		p.ImageURL,
		p.Sizes,
		p.Category,
		p.Gender,
		p.SecondHand,
		embedding,
		metadataArg,
		createdAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// ListIDs returns every persisted id in the source partition.
func (s *Store) ListIDs(ctx context.Context, source string) ([]string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE source = $1`, s.table)
	rows, err := s.pool.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// DeleteBatch removes the given ids from the source partition.
func (s *Store) DeleteBatch(ctx context.Context, source string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE source = $1 AND id = ANY($2)`, s.table)
	if _, err := s.pool.Exec(ctx, query, source, ids); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// Delete removes one id from the source partition.
func (s *Store) Delete(ctx context.Context, source string, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE source = $1 AND id = $2`, s.table)
	if _, err := s.pool.Exec(ctx, query, source, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

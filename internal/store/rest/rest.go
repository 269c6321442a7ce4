// Package rest implements catalog.Store against a PostgREST-style datastore
// API (Supabase and compatible). Rows are upserted with merge-duplicates
// semantics so repeated runs converge instead of conflicting.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/store"
)

// Config points at the datastore REST endpoint.
type Config struct {
	// URL is the project base URL, e.g. https://xyz.supabase.co.
	URL     string
	Key     string
	Table   string
	Timeout time.Duration
}

// Store talks PostgREST.
type Store struct {
	endpoint string
	key      string
	http     *http.Client
	logger   *zap.Logger
	clock    catalog.Clock
}

// New builds a REST store client.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("store url is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("store key is required")
	}
	table := cfg.Table
	if table == "" {
		table = "products"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Store{
		endpoint: strings.TrimSuffix(cfg.URL, "/") + "/rest/v1/" + table,
		key:      cfg.Key,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		clock:    catalog.SystemClock{},
	}, nil
}

// Upsert inserts or merges one product row. The Prefer header requests
// merge-duplicates so an existing id is updated in place.
func (s *Store) Upsert(ctx context.Context, p catalog.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	row, err := s.row(p)
	if err != nil {
		return err
	}
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal product row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upsert request: %w", err)
	}
	s.auth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	return s.do(req, "upsert "+p.ID)
}

// ListIDs returns every persisted id in the source partition.
func (s *Store) ListIDs(ctx context.Context, source string) ([]string, error) {
	endpoint := fmt.Sprintf("%s?select=id&source=eq.%s", s.endpoint, url.QueryEscape(source))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	s.auth(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, s.statusError(resp, "list ids")
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode id rows: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// DeleteBatch removes the given ids from the source partition in one call
// using PostgREST's in.(...) filter.
func (s *Store) DeleteBatch(ctx context.Context, source string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	filter := fmt.Sprintf("source=eq.%s&id=in.(%s)",
		url.QueryEscape(source), strings.Join(ids, ","))
	return s.delete(ctx, filter, fmt.Sprintf("delete batch of %d", len(ids)))
}

// Delete removes a single id from the source partition.
func (s *Store) Delete(ctx context.Context, source string, id string) error {
	filter := fmt.Sprintf("source=eq.%s&id=eq.%s", url.QueryEscape(source), url.QueryEscape(id))
	return s.delete(ctx, filter, "delete "+id)
}

// Close is a no-op; the HTTP client holds no connection state worth tearing
// down explicitly.
func (s *Store) Close() error { return nil }

func (s *Store) delete(ctx context.Context, filter, op string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint+"?"+filter, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	s.auth(req)
	return s.do(req, op)
}

func (s *Store) do(req *http.Request, op string) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.statusError(resp, op)
	}
	return nil
}

func (s *Store) statusError(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: datastore returned %d: %s", op, resp.StatusCode, bytes.TrimSpace(body))
}

func (s *Store) auth(req *http.Request) {
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
}

// row maps a product to its REST representation. Optional fields that are
// unset stay out of the payload so the merge never nulls existing values.
func (s *Store) row(p catalog.Product) (map[string]any, error) {
	row := map[string]any{
		"id":          p.ID,
		"source":      p.Source,
		"title":       p.Title,
		"product_url": p.ProductURL,
		"second_hand": p.SecondHand,
	}
	if p.Brand != "" {
		row["brand"] = p.Brand
	}
	if p.AffiliateURL != "" {
		row["affiliate_url"] = p.AffiliateURL
	}
	if p.Description != "" {
		row["description"] = p.Description
	}
	if p.Price != nil {
		row["price"] = *p.Price
	}
	if p.Currency != "" {
		row["currency"] = p.Currency
	}
	if p.ImageURL != "" {
		row["image_url"] = p.ImageURL
	}
	if len(p.Sizes) > 0 {
		row["sizes"] = p.Sizes
	}
	if p.Category != "" {
		row["category"] = p.Category
	}
	if p.Gender != "" {
		row["gender"] = p.Gender
	}
	if embedding := store.EncodeEmbedding(p.Embedding); embedding != "" {
		row["embedding"] = embedding
	}
	metadata, err := store.EncodeMetadata(p.Metadata)
	if err != nil {
		return nil, err
	}
	if metadata != "" {
		row["metadata"] = metadata
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	row["created_at"] = createdAt.Format(time.RFC3339)
	return row, nil
}

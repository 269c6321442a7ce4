// Package extract turns fetched product pages into catalog.Product records.
// Strategies run in order (JSON-LD, then markup fallback) and merge
// first-non-empty-field-wins, so structured data always beats scraped markup.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

// categoryPathSegments maps URL path segments to category labels for pages
// whose structured data carries no category.
var categoryPathSegments = map[string]string{
	"clothing":    "Clothing",
	"shoes":       "Shoes",
	"accessories": "Accessories",
	"beauty":      "Beauty",
	"bags":        "Bags",
}

// Config carries the brand identity and markup selectors used during
// extraction.
type Config struct {
	Brand           string
	Source          string
	IDPrefix        string
	BaseURL         string
	DefaultCategory string
	DefaultGender   string
	DefaultCurrency string
	SecondHand      bool
	ImageSelectors  []string
	SizeSelectors   []string
}

// Extractor builds product records from parsed detail pages.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
	clock  catalog.Clock
}

// New builds an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		logger: logger,
		clock:  catalog.SystemClock{},
	}
}

// Extract builds a product record from a parsed detail page. Records with no
// title or no derivable id are rejected with catalog.ErrMissingRequired. A
// panic inside any strategy is recovered into a per-item error so a single
// malformed page never takes down the batch.
func (e *Extractor) Extract(doc *goquery.Document, sourceURL string) (product *catalog.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction panicked",
				zap.String("url", sourceURL),
				zap.Any("panic", r),
			)
			product = nil
			err = fmt.Errorf("extraction panicked for %s: %v", sourceURL, r)
		}
	}()

	c := newCandidate()
	usedLD := c.fillFromJSONLD(doc)
	c.fillFromMarkup(doc, e.cfg.ImageSelectors, e.cfg.DefaultCurrency)

	if len(c.sizes) == 0 {
		c.sizes = scanSizes(doc, e.cfg.SizeSelectors)
	} else {
		c.sizes = cleanSizes(c.sizes)
	}

	id, idErr := catalog.DeriveID(e.cfg.IDPrefix, sourceURL)
	if c.title == "" || idErr != nil || id == "" {
		return nil, fmt.Errorf("%s: %w", sourceURL, catalog.ErrMissingRequired)
	}

	currency := c.currency
	if c.price != nil && currency == "" {
		currency = e.cfg.DefaultCurrency
		if currency == "" {
			currency = "EUR"
		}
	}

	canonical, canonErr := catalog.CanonicalURL(sourceURL)
	if canonErr != nil {
		canonical = sourceURL
	}

	brand := c.brand
	if brand == "" {
		brand = e.cfg.Brand
	}

	product = &catalog.Product{
		ID:          id,
		Source:      e.cfg.Source,
		Brand:       brand,
		ProductURL:  canonical,
		Title:       c.title,
		Description: c.description,
		Price:       c.price,
		Currency:    currency,
		ImageURL:    e.normalizeImageURL(c.image, sourceURL),
		Sizes:       c.sizes,
		Category:    e.category(c.category, sourceURL),
		Gender:      e.gender(sourceURL),
		SecondHand:  e.cfg.SecondHand,
		Metadata:    e.metadata(c, sourceURL),
	}

	e.logger.Debug("product extracted",
		zap.String("id", product.ID),
		zap.String("title", product.Title),
		zap.Bool("structured_data", usedLD),
	)
	return product, nil
}

// normalizeImageURL resolves the raw image reference to an absolute URL:
// protocol-relative gets https, site-absolute gets the base URL, anything
// else resolves against the page URL.
func (e *Extractor) normalizeImageURL(raw, sourceURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "/") {
		return strings.TrimSuffix(e.cfg.BaseURL, "/") + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	base, err := url.Parse(sourceURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// category prefers the structured-data value, then a known URL path segment,
// then the brand default.
func (e *Extractor) category(fromLD, sourceURL string) string {
	if fromLD != "" {
		return fromLD
	}
	if u, err := url.Parse(sourceURL); err == nil {
		for _, segment := range strings.Split(strings.ToLower(u.Path), "/") {
			if label, ok := categoryPathSegments[segment]; ok {
				return label
			}
		}
	}
	return e.cfg.DefaultCategory
}

// gender is the brand default unless the URL path names an audience.
// Substring matching, with "women" checked before "men" since one contains
// the other.
func (e *Extractor) gender(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return e.cfg.DefaultGender
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.Contains(path, "women"):
		return "women"
	case strings.Contains(path, "men"):
		return "men"
	case strings.Contains(path, "unisex"):
		return "unisex"
	}
	return e.cfg.DefaultGender
}

func (e *Extractor) metadata(c *candidate, sourceURL string) map[string]any {
	meta := map[string]any{
		"scraped_at":      e.clock.Now().Format("2006-01-02T15:04:05Z07:00"),
		"url":             sourceURL,
		"sizes_available": c.sizes,
	}
	for key, value := range c.extras {
		meta[key] = value
	}
	return meta
}

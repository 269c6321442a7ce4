// Package discover walks listing pages and collects unique product detail
// URLs. Listing markup is unreliable, so candidates come from embedded
// JSON-LD payloads first and plain anchors only when no payload matches.
package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

// pageParam is the query parameter listing pages use for pagination.
const pageParam = "page"

// Config controls candidate matching and page pacing.
type Config struct {
	// ItemPathPattern matches detail-page paths, e.g. `/product\..+\.html`.
	ItemPathPattern string
	// Delay paces listing page fetches, applied before every page
	// including the first.
	Delay time.Duration
}

// Discoverer paginates a listing and returns unique detail URLs in
// first-seen order.
type Discoverer struct {
	fetcher catalog.Fetcher
	pattern *regexp.Regexp
	limiter *rate.Limiter
	logger  *zap.Logger

	seen  map[string]struct{}
	order []string
}

// New builds a Discoverer. ItemPathPattern must be a valid regexp.
func New(cfg Config, fetcher catalog.Fetcher, logger *zap.Logger) (*Discoverer, error) {
	if cfg.ItemPathPattern == "" {
		return nil, fmt.Errorf("item path pattern is required")
	}
	pattern, err := regexp.Compile(cfg.ItemPathPattern)
	if err != nil {
		return nil, fmt.Errorf("compile item path pattern: %w", err)
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)
	// Consume the initial token so the very first page fetch also waits.
	limiter.Allow()

	return &Discoverer{
		fetcher: fetcher,
		pattern: pattern,
		limiter: limiter,
		logger:  logger,
		seen:    map[string]struct{}{},
	}, nil
}

// Discover paginates listingRoot and returns unique detail URLs. Pagination
// stops at pageLimit, at a page with zero candidates, or once itemLimit
// unique URLs have been collected. Deduplication spans the whole run, so a
// second category sharing items with a first contributes only the new ones.
func (d *Discoverer) Discover(ctx context.Context, listingRoot string, pageLimit, itemLimit int) ([]string, error) {
	root, err := url.Parse(listingRoot)
	if err != nil {
		return nil, fmt.Errorf("parse listing root: %w", err)
	}
	if pageLimit <= 0 {
		pageLimit = 1
	}

	startCount := len(d.order)
	for page := 1; page <= pageLimit; page++ {
		if itemLimit > 0 && len(d.order) >= itemLimit {
			break
		}
		pageURL := pageURLFor(root, page)

		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("page pacing wait: %w", err)
		}
		doc, err := d.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("fetch listing page: %w", err)
			}
			d.logger.Warn("listing page fetch failed, ending pagination",
				zap.String("url", pageURL),
				zap.Error(err),
			)
			break
		}

		candidates := d.pageCandidates(doc, pageURL)
		if len(candidates) == 0 {
			d.logger.Debug("no candidates on page, ending pagination",
				zap.String("url", pageURL),
				zap.Int("page", page),
			)
			break
		}

		added := 0
		for _, candidate := range candidates {
			if itemLimit > 0 && len(d.order) >= itemLimit {
				break
			}
			if _, ok := d.seen[candidate]; ok {
				continue
			}
			d.seen[candidate] = struct{}{}
			d.order = append(d.order, candidate)
			added++
		}
		d.logger.Info("listing page discovered",
			zap.String("url", pageURL),
			zap.Int("candidates", len(candidates)),
			zap.Int("new", added),
		)
	}

	result := make([]string, len(d.order)-startCount)
	copy(result, d.order[startCount:])
	return result, nil
}

// pageCandidates extracts detail URL candidates from one listing page.
// JSON-LD payloads win outright; anchors are consulted only when no payload
// URL matched. The two sources are never merged.
func (d *Discoverer) pageCandidates(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	if fromLD := d.jsonLDCandidates(doc, base); len(fromLD) > 0 {
		return fromLD
	}
	return d.anchorCandidates(doc, base)
}

func (d *Discoverer) jsonLDCandidates(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		collectURLValues(payload, func(raw string) {
			if normalized, ok := d.normalize(base, raw); ok {
				out = append(out, normalized)
			}
		})
	})
	return out
}

func (d *Discoverer) anchorCandidates(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if normalized, ok := d.normalize(base, href); ok {
			out = append(out, normalized)
		}
	})
	return out
}

// normalize resolves raw against base, strips fragment and query, and
// requires the path to match the item pattern.
func (d *Discoverer) normalize(base *url.URL, raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if !d.pattern.MatchString(resolved.Path) {
		return "", false
	}
	canonical, err := catalog.CanonicalURL(resolved.String())
	if err != nil {
		return "", false
	}
	return canonical, true
}

// collectURLValues walks an arbitrary decoded JSON value and invokes fn for
// every "url" string found, in document order.
func collectURLValues(node any, fn func(string)) {
	switch v := node.(type) {
	case map[string]any:
		if raw, ok := v["url"].(string); ok {
			fn(raw)
		}
		for _, key := range []string{"itemListElement", "@graph", "item", "mainEntity", "hasPart"} {
			if child, ok := v[key]; ok {
				collectURLValues(child, fn)
			}
		}
	case []any:
		for _, item := range v {
			collectURLValues(item, fn)
		}
	}
}

func pageURLFor(root *url.URL, page int) string {
	if page <= 1 {
		return root.String()
	}
	u := *root
	q := u.Query()
	q.Set(pageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Package pipeline drives one sync run through its phases: discover listing
// pages, then per item extract, embed and persist in a single sequential
// pass, then reconcile the store against the run's successful set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/metrics"
	"github.com/wardrobe-ai/catalog-sync/internal/reconcile"
)

// Discoverer yields unique detail-page URLs for a listing root.
type Discoverer interface {
	Discover(ctx context.Context, listingRoot string, pageLimit, itemLimit int) ([]string, error)
}

// Extractor builds a product record from a fetched detail page.
type Extractor interface {
	Extract(doc *goquery.Document, sourceURL string) (*catalog.Product, error)
}

// Reconciler prunes stale store rows after a run.
type Reconciler interface {
	Reconcile(ctx context.Context, successfulIDs []string) (reconcile.Report, error)
}

// ImageDownloader fetches product image bytes for embedding.
type ImageDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Config identifies the run and its inputs.
type Config struct {
	Source        string
	ListingURLs   []string
	PageLimit     int
	ItemLimit     int
	ArchivePrefix string
	PublishTopic  string
}

// Pipeline owns the collaborators for one run. Optional collaborators
// (embedder, downloader, reconciler, archive, publisher) may be nil and the
// matching phase is skipped.
type Pipeline struct {
	cfg        Config
	fetcher    catalog.Fetcher
	discoverer Discoverer
	extractor  Extractor
	embedder   catalog.Embedder
	downloader ImageDownloader
	store      catalog.Store
	reconciler Reconciler
	archive    catalog.BlobStore
	publisher  catalog.Publisher
	transport  catalog.Transport
	logger     *zap.Logger
	clock      catalog.Clock

	mu      sync.RWMutex
	summary catalog.RunSummary
}

// Options carries the optional collaborators.
type Options struct {
	Embedder   catalog.Embedder
	Downloader ImageDownloader
	Reconciler Reconciler
	Archive    catalog.BlobStore
	Publisher  catalog.Publisher
	Transport  catalog.Transport
	Clock      catalog.Clock
}

// New assembles a Pipeline.
func New(cfg Config, fetcher catalog.Fetcher, discoverer Discoverer, extractor Extractor,
	store catalog.Store, logger *zap.Logger, opts Options) *Pipeline {
	metrics.Init()
	clock := opts.Clock
	if clock == nil {
		clock = catalog.SystemClock{}
	}
	return &Pipeline{
		cfg:        cfg,
		fetcher:    fetcher,
		discoverer: discoverer,
		extractor:  extractor,
		embedder:   opts.Embedder,
		downloader: opts.Downloader,
		store:      store,
		reconciler: opts.Reconciler,
		archive:    opts.Archive,
		publisher:  opts.Publisher,
		transport:  opts.Transport,
		logger:     logger,
		clock:      clock,
		summary:    catalog.RunSummary{State: catalog.StateIdle},
	}
}

// Summary returns a snapshot of the current run state.
func (p *Pipeline) Summary() catalog.RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.summary
}

// Run executes one full sync run. Resources (transport, store) are released
// on every exit path.
func (p *Pipeline) Run(ctx context.Context) (catalog.RunSummary, error) {
	runID := uuid.NewString()
	p.setSummary(func(s *catalog.RunSummary) {
		*s = catalog.RunSummary{
			RunID:     runID,
			State:     catalog.StateIdle,
			StartedAt: p.clock.Now(),
		}
	})
	defer p.release()

	p.logger.Info("run starting",
		zap.String("run_id", runID),
		zap.String("source", p.cfg.Source),
		zap.Int("listings", len(p.cfg.ListingURLs)),
	)

	urls, err := p.discover(ctx)
	if err != nil {
		return p.fail(ctx, err)
	}

	successfulIDs := p.syncItems(ctx, urls)
	// An interrupted batch leaves unprocessed items looking stale; the run
	// must fail without reconciling so nothing gets pruned.
	if ctx.Err() != nil {
		return p.fail(ctx, fmt.Errorf("run interrupted: %w", ctx.Err()))
	}
	if len(successfulIDs) == 0 {
		return p.fail(ctx, errors.New("no products extracted"))
	}

	p.reconcileRun(ctx, successfulIDs)
	return p.finish(ctx, catalog.StateDone, nil)
}

func (p *Pipeline) discover(ctx context.Context) ([]string, error) {
	p.setState(catalog.StateDiscovering)
	var urls []string
	for _, listing := range p.cfg.ListingURLs {
		found, err := p.discoverer.Discover(ctx, listing, p.cfg.PageLimit, p.cfg.ItemLimit)
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", listing, err)
		}
		urls = append(urls, found...)
	}
	if len(urls) == 0 {
		return nil, errors.New("no detail pages discovered")
	}
	p.setSummary(func(s *catalog.RunSummary) { s.Counters.Discovered = len(urls) })
	p.logger.Info("discovery complete", zap.Int("urls", len(urls)))
	return urls, nil
}

// syncItems runs the per-item extract, embed, persist pass and returns the
// ids that made it into the store.
func (p *Pipeline) syncItems(ctx context.Context, urls []string) []string {
	p.setState(catalog.StateExtracting)
	var successfulIDs []string
	for _, url := range urls {
		if ctx.Err() != nil {
			p.logger.Warn("run canceled mid-batch", zap.Error(ctx.Err()))
			break
		}
		id, ok := p.syncItem(ctx, url)
		if !ok {
			p.setSummary(func(s *catalog.RunSummary) { s.Counters.Failed++ })
			metrics.ObserveProduct("failed")
			continue
		}
		successfulIDs = append(successfulIDs, id)
		p.setSummary(func(s *catalog.RunSummary) { s.Counters.Succeeded++ })
		metrics.ObserveProduct("succeeded")
	}
	return successfulIDs
}

func (p *Pipeline) syncItem(ctx context.Context, url string) (string, bool) {
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.logger.Warn("detail page unavailable", zap.String("url", url), zap.Error(err))
		return "", false
	}

	product, err := p.extractor.Extract(doc, url)
	if err != nil {
		p.logger.Warn("extraction failed", zap.String("url", url), zap.Error(err))
		return "", false
	}

	p.archivePage(ctx, doc, product.ID)
	p.embedProduct(ctx, product)

	p.setState(catalog.StatePersisting)
	if err := p.store.Upsert(ctx, *product); err != nil {
		p.logger.Error("upsert failed", zap.String("id", product.ID), zap.Error(err))
		metrics.ObserveUpsert("failed")
		return "", false
	}
	metrics.ObserveUpsert("succeeded")
	p.publishEvent(ctx, "product.synced", map[string]any{
		"id":     product.ID,
		"source": product.Source,
		"url":    product.ProductURL,
	})
	p.setState(catalog.StateExtracting)
	return product.ID, true
}

// embedProduct attaches an image embedding when an embedder is configured.
// Failures (download, service, dimension mismatch) discard the vector and
// never fail the item.
func (p *Pipeline) embedProduct(ctx context.Context, product *catalog.Product) {
	if p.embedder == nil || p.downloader == nil || product.ImageURL == "" {
		return
	}
	p.setState(catalog.StateEmbedding)
	image, err := p.downloader.Download(ctx, product.ImageURL)
	if err != nil {
		p.logger.Warn("image download failed",
			zap.String("id", product.ID),
			zap.String("image_url", product.ImageURL),
			zap.Error(err),
		)
		metrics.ObserveEmbedding("download_failed")
		return
	}
	vector, err := p.embedder.Embed(ctx, image)
	if err != nil {
		p.logger.Warn("embedding failed", zap.String("id", product.ID), zap.Error(err))
		metrics.ObserveEmbedding("failed")
		return
	}
	if len(vector) == 0 {
		return
	}
	product.Embedding = vector
	p.setSummary(func(s *catalog.RunSummary) { s.Counters.Embedded++ })
	metrics.ObserveEmbedding("succeeded")
}

func (p *Pipeline) archivePage(ctx context.Context, doc *goquery.Document, id string) {
	if p.archive == nil {
		return
	}
	html, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		p.logger.Warn("render page for archive failed", zap.String("id", id), zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s/%s.html", p.cfg.ArchivePrefix, p.Summary().RunID, id)
	uri, err := p.archive.PutObject(ctx, path, "text/html; charset=utf-8", []byte(html))
	if err != nil {
		p.logger.Warn("archive write failed", zap.String("id", id), zap.Error(err))
		return
	}
	p.logger.Debug("page archived", zap.String("id", id), zap.String("uri", uri))
}

func (p *Pipeline) reconcileRun(ctx context.Context, successfulIDs []string) {
	if p.reconciler == nil {
		return
	}
	p.setState(catalog.StateReconciling)
	report, err := p.reconciler.Reconcile(ctx, successfulIDs)
	if err != nil {
		p.logger.Error("reconciliation failed", zap.Error(err))
		return
	}
	p.setSummary(func(s *catalog.RunSummary) { s.Counters.Deleted = report.Deleted })
	p.logger.Info("reconciliation complete",
		zap.Int("persisted", report.Persisted),
		zap.Int("stale", report.Stale),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
	)
}

func (p *Pipeline) fail(ctx context.Context, cause error) (catalog.RunSummary, error) {
	summary, _ := p.finish(ctx, catalog.StateFailed, cause)
	return summary, cause
}

func (p *Pipeline) finish(ctx context.Context, state catalog.RunState, cause error) (catalog.RunSummary, error) {
	p.setSummary(func(s *catalog.RunSummary) {
		s.State = state
		s.FinishedAt = p.clock.Now()
		if cause != nil {
			s.ErrorText = cause.Error()
		}
	})
	summary := p.Summary()
	metrics.ObserveRun(string(state))
	p.publishEvent(ctx, "run.finished", summary)

	log := p.logger.Info
	if state == catalog.StateFailed {
		log = p.logger.Error
	}
	log("run finished",
		zap.String("run_id", summary.RunID),
		zap.String("state", string(state)),
		zap.Int("discovered", summary.Counters.Discovered),
		zap.Int("succeeded", summary.Counters.Succeeded),
		zap.Int("failed", summary.Counters.Failed),
		zap.Int("embedded", summary.Counters.Embedded),
		zap.Int("deleted", summary.Counters.Deleted),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (p *Pipeline) publishEvent(ctx context.Context, eventType string, payload any) {
	if p.publisher == nil || p.cfg.PublishTopic == "" {
		return
	}
	event := map[string]any{
		"type":    eventType,
		"run_id":  p.Summary().RunID,
		"payload": payload,
		"ts":      p.clock.Now().Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.PublishTopic, event); err != nil {
		p.logger.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

// release closes the transport and store. Close failures are logged; there
// is nothing further to do with them at end of run.
func (p *Pipeline) release() {
	if p.transport != nil {
		if err := p.transport.Close(); err != nil {
			p.logger.Warn("transport close failed", zap.Error(err))
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("store close failed", zap.Error(err))
		}
	}
}

func (p *Pipeline) setState(state catalog.RunState) {
	p.setSummary(func(s *catalog.RunSummary) { s.State = state })
}

func (p *Pipeline) setSummary(mutate func(*catalog.RunSummary)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mutate(&p.summary)
}

// Package main is the catalog sync CLI. One binary covers the full pipeline
// plus partial modes for debugging individual stages.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/api"
	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/config"
	"github.com/wardrobe-ai/catalog-sync/internal/logging"
	"github.com/wardrobe-ai/catalog-sync/internal/pipeline"
	"github.com/wardrobe-ai/catalog-sync/internal/reconcile"
)

type cliFlags struct {
	configPath string
	mode       string
	urls       string
	inputFile  string
	outputFile string
	stats      bool
	limit      int
	test       bool
}

func main() {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "", "Path to config file")
	flag.StringVar(&flags.mode, "mode", "full", "Run mode: full, category, products or embeddings")
	flag.StringVar(&flags.urls, "urls", "", "Comma-separated URLs overriding the configured listing")
	flag.StringVar(&flags.inputFile, "input-file", "", "Input file (URLs one per line, or product records JSON)")
	flag.StringVar(&flags.outputFile, "output-file", "", "Output file; stdout when empty")
	flag.BoolVar(&flags.stats, "stats", false, "Print the resolved configuration summary and exit")
	flag.IntVar(&flags.limit, "limit", 0, "Cap the number of items processed")
	flag.BoolVar(&flags.test, "test", false, "Test run: memory store, no-op embedder, no external writes")
	flag.Parse()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if flags.stats {
		printStats(cfg, flags)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags, logger); err != nil {
		logger.Error("run failed", zap.String("mode", flags.mode), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, flags cliFlags, logger *zap.Logger) error {
	switch flags.mode {
	case "full":
		return runFull(ctx, cfg, flags, logger)
	case "category":
		return runCategory(ctx, cfg, flags, logger)
	case "products":
		return runProducts(ctx, cfg, flags, logger)
	case "embeddings":
		return runEmbeddings(ctx, cfg, flags, logger)
	default:
		return fmt.Errorf("unknown mode %q", flags.mode)
	}
}

// runFull executes the complete discover, sync, reconcile pipeline.
func runFull(ctx context.Context, cfg config.Config, flags cliFlags, logger *zap.Logger) error {
	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}
	f := buildFetcher(cfg, transport, logger)
	discoverer, err := buildDiscoverer(cfg, f, logger)
	if err != nil {
		return err
	}
	store, err := buildStore(ctx, cfg, flags.test, logger)
	if err != nil {
		return err
	}
	embedder, downloader, err := buildEmbedder(cfg, flags.test, logger)
	if err != nil {
		return err
	}
	archive, err := buildArchive(ctx, cfg, flags.test)
	if err != nil {
		return err
	}
	publisher, err := buildPublisher(ctx, cfg, flags.test)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Config{
		Source:        cfg.Brand.Source,
		ListingURLs:   listingURLs(cfg, flags),
		PageLimit:     cfg.Scraping.MaxPages,
		ItemLimit:     flags.limit,
		ArchivePrefix: cfg.Archive.Prefix,
		PublishTopic:  cfg.PubSub.TopicName,
	}, f, discoverer, buildExtractor(cfg, logger), store, logger, pipeline.Options{
		Embedder:   embedder,
		Downloader: downloader,
		Reconciler: reconcile.New(store, cfg.Brand.Source, 0, logger),
		Archive:    archive,
		Publisher:  publisher,
		Transport:  transport,
	})

	if cfg.Server.Enabled {
		startServer(ctx, cfg, p, logger)
	}

	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if summary.State != catalog.StateDone {
		return fmt.Errorf("run ended in state %s", summary.State)
	}
	return nil
}

// runCategory performs discovery only and emits the URL list as JSON.
func runCategory(ctx context.Context, cfg config.Config, flags cliFlags, logger *zap.Logger) error {
	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = transport.Close() }()

	f := buildFetcher(cfg, transport, logger)
	discoverer, err := buildDiscoverer(cfg, f, logger)
	if err != nil {
		return err
	}

	var urls []string
	for _, listing := range listingURLs(cfg, flags) {
		found, err := discoverer.Discover(ctx, listing, cfg.Scraping.MaxPages, flags.limit)
		if err != nil {
			return err
		}
		urls = append(urls, found...)
	}
	return writeJSON(flags.outputFile, urls)
}

// runProducts extracts the given detail URLs and emits the records as JSON,
// without touching the store.
func runProducts(ctx context.Context, cfg config.Config, flags cliFlags, logger *zap.Logger) error {
	urls, err := inputURLs(flags)
	if err != nil {
		return err
	}
	if flags.limit > 0 && len(urls) > flags.limit {
		urls = urls[:flags.limit]
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = transport.Close() }()

	f := buildFetcher(cfg, transport, logger)
	extractor := buildExtractor(cfg, logger)

	var products []catalog.Product
	for _, url := range urls {
		doc, err := f.Fetch(ctx, url)
		if err != nil {
			logger.Warn("page unavailable", zap.String("url", url), zap.Error(err))
			continue
		}
		product, err := extractor.Extract(doc, url)
		if err != nil {
			logger.Warn("extraction failed", zap.String("url", url), zap.Error(err))
			continue
		}
		products = append(products, *product)
	}
	logger.Info("extraction pass complete",
		zap.Int("requested", len(urls)),
		zap.Int("extracted", len(products)),
	)
	return writeJSON(flags.outputFile, products)
}

// runEmbeddings reads product records JSON, attaches embeddings and writes
// the updated records out.
func runEmbeddings(ctx context.Context, cfg config.Config, flags cliFlags, logger *zap.Logger) error {
	if flags.inputFile == "" {
		return errors.New("embeddings mode requires -input-file with product records JSON")
	}
	data, err := os.ReadFile(flags.inputFile)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("parse product records: %w", err)
	}
	if flags.limit > 0 && len(products) > flags.limit {
		products = products[:flags.limit]
	}

	embedder, downloader, err := buildEmbedder(cfg, flags.test, logger)
	if err != nil {
		return err
	}
	if embedder == nil {
		return errors.New("embedding is disabled in configuration")
	}

	var attached int
	for i := range products {
		p := &products[i]
		if p.ImageURL == "" || downloader == nil {
			continue
		}
		image, err := downloader.Download(ctx, p.ImageURL)
		if err != nil {
			logger.Warn("image download failed", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		vector, err := embedder.Embed(ctx, image)
		if err != nil {
			logger.Warn("embedding failed", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		if len(vector) > 0 {
			p.Embedding = vector
			attached++
		}
	}
	logger.Info("embedding pass complete",
		zap.Int("records", len(products)),
		zap.Int("attached", attached),
	)
	return writeJSON(flags.outputFile, products)
}

// startServer exposes /healthz, /metrics and /status for the duration of the
// run.
func startServer(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(p, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func printStats(cfg config.Config, flags cliFlags) {
	fmt.Printf("brand:            %s (source=%s, prefix=%s)\n", cfg.Brand.Name, cfg.Brand.Source, cfg.Brand.IDPrefix)
	fmt.Printf("base url:         %s\n", cfg.Brand.BaseURL)
	fmt.Printf("listing urls:     %s\n", strings.Join(listingURLs(cfg, flags), ", "))
	fmt.Printf("item pattern:     %s\n", cfg.Brand.ItemPathPattern)
	fmt.Printf("scraping:         delay=%s pages=%d retries=%d headless=%t\n",
		cfg.RequestDelay(), cfg.Scraping.MaxPages, cfg.Scraping.MaxRetries, cfg.Scraping.Headless)
	fmt.Printf("store:            provider=%s table=%s\n", cfg.Store.Provider, cfg.Store.Table)
	fmt.Printf("embedding:        enabled=%t dimension=%d\n", cfg.Embedding.Enabled, cfg.Embedding.Dimension)
	fmt.Printf("archive:          provider=%s\n", cfg.Archive.Provider)
	fmt.Printf("pubsub:           enabled=%t topic=%s\n", cfg.PubSub.Enabled, cfg.PubSub.TopicName)
	fmt.Printf("server:           enabled=%t port=%d\n", cfg.Server.Enabled, cfg.Server.Port)
}

func listingURLs(cfg config.Config, flags cliFlags) []string {
	if flags.urls != "" {
		return splitCSV(flags.urls)
	}
	if cfg.Brand.CategoryURL != "" {
		return []string{cfg.Brand.CategoryURL}
	}
	return []string{cfg.Brand.BaseURL}
}

func inputURLs(flags cliFlags) ([]string, error) {
	if flags.urls != "" {
		return splitCSV(flags.urls), nil
	}
	if flags.inputFile == "" {
		return nil, errors.New("products mode requires -urls or -input-file")
	}
	data, err := os.ReadFile(flags.inputFile)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if len(urls) == 0 {
		return nil, errors.New("no URLs in input file")
	}
	return urls, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	gcsarchive "github.com/wardrobe-ai/catalog-sync/internal/archive/gcs"
	localarchive "github.com/wardrobe-ai/catalog-sync/internal/archive/local"
	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/config"
	"github.com/wardrobe-ai/catalog-sync/internal/discover"
	"github.com/wardrobe-ai/catalog-sync/internal/embed"
	"github.com/wardrobe-ai/catalog-sync/internal/extract"
	"github.com/wardrobe-ai/catalog-sync/internal/fetcher"
	collytransport "github.com/wardrobe-ai/catalog-sync/internal/fetcher/colly"
	headlesstransport "github.com/wardrobe-ai/catalog-sync/internal/fetcher/headless"
	"github.com/wardrobe-ai/catalog-sync/internal/pipeline"
	pubsubpublisher "github.com/wardrobe-ai/catalog-sync/internal/publisher/pubsub"
	memorystore "github.com/wardrobe-ai/catalog-sync/internal/store/memory"
	pgstore "github.com/wardrobe-ai/catalog-sync/internal/store/postgres"
	reststore "github.com/wardrobe-ai/catalog-sync/internal/store/rest"
)

// buildTransport selects the page transport: a plain HTTP collector by
// default, a headless browser when the catalog needs JavaScript rendering.
func buildTransport(cfg config.Config) (catalog.Transport, error) {
	if cfg.Scraping.Headless {
		return headlesstransport.New(headlesstransport.Config{
			UserAgent:         cfg.Scraping.UserAgent,
			NavigationTimeout: cfg.FetchTimeout(),
		})
	}
	return collytransport.New(collytransport.Config{
		Timeout: cfg.FetchTimeout(),
	}), nil
}

func buildFetcher(cfg config.Config, transport catalog.Transport, logger *zap.Logger) *fetcher.Fetcher {
	return fetcher.New(fetcher.Config{
		BaseURL:    cfg.Brand.BaseURL,
		UserAgent:  cfg.Scraping.UserAgent,
		MaxRetries: cfg.Scraping.MaxRetries,
		Delay:      cfg.RequestDelay(),
	}, transport, logger)
}

func buildDiscoverer(cfg config.Config, f catalog.Fetcher, logger *zap.Logger) (*discover.Discoverer, error) {
	return discover.New(discover.Config{
		ItemPathPattern: cfg.Brand.ItemPathPattern,
		Delay:           cfg.RequestDelay(),
	}, f, logger)
}

func buildExtractor(cfg config.Config, logger *zap.Logger) *extract.Extractor {
	return extract.New(extract.Config{
		Brand:           cfg.Brand.Name,
		Source:          cfg.Brand.Source,
		IDPrefix:        cfg.Brand.IDPrefix,
		BaseURL:         cfg.Brand.BaseURL,
		DefaultCategory: cfg.Brand.DefaultCategory,
		DefaultGender:   cfg.Brand.DefaultGender,
		DefaultCurrency: cfg.Brand.DefaultCurrency,
		SecondHand:      cfg.Brand.SecondHand,
		ImageSelectors:  cfg.Selectors.Image,
		SizeSelectors:   cfg.Selectors.Size,
	}, logger)
}

func buildStore(ctx context.Context, cfg config.Config, testMode bool, logger *zap.Logger) (catalog.Store, error) {
	if testMode {
		return memorystore.New(), nil
	}
	switch cfg.Store.Provider {
	case "rest":
		return reststore.New(reststore.Config{
			URL:   cfg.Store.URL,
			Key:   cfg.Store.Key,
			Table: cfg.Store.Table,
		}, logger)
	case "postgres":
		return pgstore.New(ctx, pgstore.Config{
			DSN:   cfg.Store.DSN,
			Table: cfg.Store.Table,
		})
	case "memory":
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

// buildEmbedder returns the embedder and image downloader, or nils when
// embedding is disabled or a test run must not touch the network.
func buildEmbedder(cfg config.Config, testMode bool, logger *zap.Logger) (catalog.Embedder, pipeline.ImageDownloader, error) {
	if testMode {
		return embed.Noop{Dim: cfg.Embedding.Dimension}, nil, nil
	}
	if !cfg.Embedding.Enabled {
		return nil, nil, nil
	}
	client, err := embed.NewClient(embed.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.EmbeddingTimeout(),
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	downloader := embed.NewDownloader(cfg.Scraping.UserAgent, cfg.EmbeddingTimeout())
	return client, downloader, nil
}

func buildArchive(ctx context.Context, cfg config.Config, testMode bool) (catalog.BlobStore, error) {
	if testMode {
		return nil, nil
	}
	switch cfg.Archive.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return gcsarchive.New(client, gcsarchive.Config{Bucket: cfg.Archive.GCSBucket})
	case "local":
		return localarchive.New(localarchive.Config{BaseDir: cfg.Archive.LocalDir})
	case "", "noop":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, testMode bool) (catalog.Publisher, error) {
	if testMode || !cfg.PubSub.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return pubsubpublisher.New(client)
}

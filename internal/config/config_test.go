package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
brand:
  name: Other Stories
  id_prefix: otherstories
  base_url: https://www.stories.com
  category_url: https://www.stories.com/en-eu/clothing/
store:
  provider: memory
embedding:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Scraping.MaxPages)
	require.Equal(t, 3, cfg.Scraping.MaxRetries)
	require.Equal(t, 768, cfg.Embedding.Dimension)
	require.Equal(t, "EUR", cfg.Brand.DefaultCurrency)
	require.Equal(t, "scraper", cfg.Brand.Source)
	require.InDelta(t, 1.5, cfg.Scraping.DelaySeconds, 0.001)
}

func TestLoadRejectsMissingBaseURL(t *testing.T) {
	path := writeConfig(t, `
brand:
  id_prefix: x
store:
  provider: memory
embedding:
  enabled: false
`)

	_, err := Load(path)
	require.ErrorContains(t, err, "brand.base_url")
}

func TestLoadRejectsRestWithoutCredentials(t *testing.T) {
	path := writeConfig(t, `
brand:
  id_prefix: x
  base_url: https://shop.example
store:
  provider: rest
embedding:
  enabled: false
`)

	_, err := Load(path)
	require.ErrorContains(t, err, "store.url and store.key")
}

func TestLoadRejectsEmbeddingWithoutEndpoint(t *testing.T) {
	path := writeConfig(t, `
brand:
  id_prefix: x
  base_url: https://shop.example
store:
  provider: memory
embedding:
  enabled: true
`)

	_, err := Load(path)
	require.ErrorContains(t, err, "embedding.endpoint")
}

func TestLoadRejectsUnknownStoreProvider(t *testing.T) {
	path := writeConfig(t, `
brand:
  id_prefix: x
  base_url: https://shop.example
store:
  provider: dynamo
embedding:
  enabled: false
`)

	_, err := Load(path)
	require.ErrorContains(t, err, "unknown store provider")
}

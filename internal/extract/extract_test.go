package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func newTestExtractor() *Extractor {
	return New(Config{
		Brand:           "Other Stories",
		Source:          "otherstories",
		IDPrefix:        "otherstories",
		BaseURL:         "https://shop.example",
		DefaultCategory: "Clothing",
		DefaultGender:   "women",
		DefaultCurrency: "EUR",
	}, zap.NewNop())
}

const productLDPage = `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Product",
  "name": "Wool Coat",
  "description": "A long wool coat.",
  "sku": "1217076002",
  "color": "Camel",
  "brand": {"@type": "Brand", "name": "& Other Stories"},
  "category": "Coats > Wool",
  "image": ["//cdn.example/images/coat.jpg", "//cdn.example/images/coat-2.jpg"],
  "offers": [
    {"@type": "Offer", "price": "129.00", "priceCurrency": "EUR", "size": "S",
     "itemCondition": "https://schema.org/NewCondition"},
    {"@type": "Offer", "price": "129.00", "priceCurrency": "EUR", "size": "M"}
  ],
  "aggregateRating": {"ratingValue": "4.5", "reviewCount": 12}
}
</script>
<meta property="og:title" content="SHOULD NOT WIN">
<meta property="og:image" content="https://cdn.example/og.jpg">
</head><body><h1>Also should not win</h1></body></html>`

func TestExtractFromJSONLD(t *testing.T) {
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, productLDPage), "https://shop.example/product/wool-coat-1217076002/")
	require.NoError(t, err)

	require.Equal(t, "otherstories_1217076002", p.ID)
	require.Equal(t, "Wool Coat", p.Title, "structured data beats og:title")
	require.Equal(t, "A long wool coat.", p.Description)
	require.Equal(t, "& Other Stories", p.Brand)
	require.Equal(t, "Coats", p.Category, "breadcrumb keeps the leading segment")
	require.NotNil(t, p.Price)
	require.InDelta(t, 129.00, *p.Price, 0.001)
	require.Equal(t, "EUR", p.Currency)
	require.Equal(t, "https://cdn.example/images/coat.jpg", p.ImageURL)
	require.Equal(t, []string{"S", "M"}, p.Sizes)
	require.Equal(t, "1217076002", p.Metadata["sku"])
	require.Equal(t, "Camel", p.Metadata["color"])
	require.Equal(t, "NewCondition", p.Metadata["condition"])
	require.Equal(t, 4.5, p.Metadata["rating"])
	require.Equal(t, 12, p.Metadata["review_count"])
	require.Equal(t, "https://shop.example/product/wool-coat-1217076002/", p.ProductURL)
}

func TestExtractMarkupFallback(t *testing.T) {
	page := `<html><head>
		<meta property="og:title" content="Rain Jacket">
		<meta property="og:description" content="Water resistant shell.">
		<meta property="product:price:amount" content="89.50">
		<meta property="product:price:currency" content="GBP">
		<meta property="og:image" content="/images/jacket.jpg">
	</head><body></body></html>`
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/product/rain-jacket-445566/")
	require.NoError(t, err)

	require.Equal(t, "Rain Jacket", p.Title)
	require.Equal(t, "Water resistant shell.", p.Description)
	require.InDelta(t, 89.50, *p.Price, 0.001)
	require.Equal(t, "GBP", p.Currency)
	require.Equal(t, "https://shop.example/images/jacket.jpg", p.ImageURL,
		"site-absolute image resolves against the base URL")
	require.Equal(t, "Other Stories", p.Brand, "brand defaults when markup has none")
}

func TestExtractPriceFromDescriptionText(t *testing.T) {
	page := `<html><head>
		<title>Silk Scarf</title>
		<meta property="og:description" content="Pure silk scarf, now $49.99 while stocks last.">
	</head><body></body></html>`
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/product/silk-scarf-778899/")
	require.NoError(t, err)
	require.InDelta(t, 49.99, *p.Price, 0.001)
	require.Equal(t, "USD", p.Currency)
}

func TestExtractMissingTitleRejected(t *testing.T) {
	e := newTestExtractor()
	_, err := e.Extract(docFromHTML(t, "<html><body><p>nothing here</p></body></html>"),
		"https://shop.example/product/mystery-1/")
	require.ErrorIs(t, err, catalog.ErrMissingRequired)
}

func TestExtractRecoversFromPanic(t *testing.T) {
	e := newTestExtractor()
	p, err := e.Extract(nil, "https://shop.example/product/broken-1/")
	require.Error(t, err)
	require.Nil(t, p)
	require.Contains(t, err.Error(), "panicked")
}

func TestExtractSizeSelectorFallback(t *testing.T) {
	page := `<html><head><title>Knit Dress</title></head><body>
		<div class="size-selector">
			<button>Select size</button>
			<button>XS</button>
			<button>S</button>
			<button>S</button>
		</div>
	</body></html>`
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/product/knit-dress-100200/")
	require.NoError(t, err)
	require.Equal(t, []string{"XS", "S"}, p.Sizes,
		"placeholders and duplicates are dropped, order preserved")
}

func TestExtractSizesFirstSelectorWins(t *testing.T) {
	page := `<html><head><title>Knit Dress</title></head><body>
		<span data-size="M"></span>
		<div class="size-selector"><button>L</button></div>
	</body></html>`
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/product/knit-dress-100200/")
	require.NoError(t, err)
	require.Equal(t, []string{"M"}, p.Sizes, "later selectors are not merged in")
}

func TestExtractCategoryFromURLPath(t *testing.T) {
	page := `<html><head><title>Leather Tote</title></head><body></body></html>`
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/women/bags/product/leather-tote-300400/")
	require.NoError(t, err)
	require.Equal(t, "Bags", p.Category)
	require.Equal(t, "women", p.Gender)
}

func TestExtractGenderOverrideFromURL(t *testing.T) {
	page := `<html><head><title>Basic Tee</title></head><body></body></html>`
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/men/product/basic-tee-500600/")
	require.NoError(t, err)
	require.Equal(t, "men", p.Gender, "URL audience hint overrides the brand default")
}

func TestExtractGenderSubstringMatch(t *testing.T) {
	page := `<html><head><title>Basic Tee</title></head><body></body></html>`
	e := newTestExtractor()

	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/womens-coats/product/parka-700800/")
	require.NoError(t, err)
	require.Equal(t, "women", p.Gender, "womens wins over the embedded men")

	p, err = e.Extract(docFromHTML(t, page), "https://shop.example/mens-shoes/product/boot-700900/")
	require.NoError(t, err)
	require.Equal(t, "men", p.Gender)
}

func TestExtractHashFallbackID(t *testing.T) {
	page := `<html><head><title>No Numeric Suffix</title></head><body></body></html>`
	e := newTestExtractor()
	p, err := e.Extract(docFromHTML(t, page), "https://shop.example/product/plain-name/")
	require.NoError(t, err)
	require.Regexp(t, `^otherstories_[0-9a-f]{16}$`, p.ID)
}

func TestParsePriceTable(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		fallback string
		want     float64
		currency string
	}{
		{"euro comma decimal", "€49,90", "EUR", 49.90, "EUR"},
		{"dollar dot decimal", "$49.99", "EUR", 49.99, "USD"},
		{"bare amount uses fallback", "49", "EUR", 49.0, "EUR"},
		{"pound", "£120.00", "EUR", 120.0, "GBP"},
		{"symbol with space", "€ 15,50", "EUR", 15.50, "EUR"},
		{"empty fallback defaults to EUR", "49", "", 49.0, "EUR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price, currency := ParsePrice(tc.text, tc.fallback)
			require.NotNil(t, price)
			require.InDelta(t, tc.want, *price, 0.001)
			require.Equal(t, tc.currency, currency)
		})
	}
}

func TestParsePriceNoAmount(t *testing.T) {
	price, currency := ParsePrice("sold out", "EUR")
	require.Nil(t, price)
	require.Empty(t, currency)
}

func TestNormalizeImageURL(t *testing.T) {
	e := newTestExtractor()
	source := "https://shop.example/women/product/coat-1/"

	require.Equal(t, "https://cdn.example/a.jpg", e.normalizeImageURL("//cdn.example/a.jpg", source))
	require.Equal(t, "https://shop.example/img/b.jpg", e.normalizeImageURL("/img/b.jpg", source))
	require.Equal(t, "https://other.example/c.jpg", e.normalizeImageURL("https://other.example/c.jpg", source))
	require.Equal(t, "https://shop.example/women/product/coat-1/d.jpg", e.normalizeImageURL("d.jpg", source))
	require.Empty(t, e.normalizeImageURL("  ", source))
}

package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var defaultImageSelectors = []string{
	"img.product-image",
	".product-image img",
	".product-media img",
	"picture img",
	`img[itemprop="image"]`,
}

// fillFromMarkup fills whatever the JSON-LD pass left empty from meta tags
// and page markup.
func (c *candidate) fillFromMarkup(doc *goquery.Document, imageSelectors []string, fallbackCurrency string) {
	if c.title == "" {
		c.title = markupTitle(doc)
	}
	if c.description == "" {
		c.description = metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`)
	}
	if c.price == nil {
		c.fillPriceFromMarkup(doc, fallbackCurrency)
	}
	if c.image == "" {
		c.image = markupImage(doc, imageSelectors)
	}
}

func markupTitle(doc *goquery.Document) string {
	if title := metaContent(doc, `meta[property="og:title"]`); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func (c *candidate) fillPriceFromMarkup(doc *goquery.Document, fallbackCurrency string) {
	if amount := metaContent(doc, `meta[property="product:price:amount"]`); amount != "" {
		c.price = parseAmount(amount)
		if c.currency == "" {
			c.currency = metaContent(doc, `meta[property="product:price:currency"]`)
		}
		if c.price != nil {
			return
		}
	}
	// Last resort: a symbol+amount token in the description text.
	text := metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`)
	if text == "" {
		return
	}
	price, currency := ParsePrice(text, fallbackCurrency)
	if price != nil {
		c.price = price
		if c.currency == "" {
			c.currency = currency
		}
	}
}

func markupImage(doc *goquery.Document, selectors []string) string {
	if image := metaContent(doc, `meta[property="og:image"]`, `meta[name="twitter:image"]`); image != "" {
		return image
	}
	if len(selectors) == 0 {
		selectors = defaultImageSelectors
	}
	for _, selector := range selectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"src", "data-src"} {
				if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
					found = strings.TrimSpace(v)
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// metaContent returns the first non-empty content attribute among the given
// meta selectors.
func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if v, ok := doc.Find(selector).First().Attr("content"); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

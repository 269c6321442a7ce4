package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// candidate accumulates field values across extraction strategies. The first
// strategy to fill a field wins; later strategies only fill what is still
// empty.
type candidate struct {
	title       string
	description string
	price       *float64
	currency    string
	image       string
	category    string
	brand       string
	sizes       []string

	// extras land in Product.Metadata when present.
	extras map[string]any
}

func newCandidate() *candidate {
	return &candidate{extras: map[string]any{}}
}

// fillFromJSONLD locates the first JSON-LD Product payload in the document
// and copies its fields into c. Real-world payloads are sloppy, so every
// field tolerates the string/object/list shapes seen in the wild.
func (c *candidate) fillFromJSONLD(doc *goquery.Document) bool {
	product := findProductLD(doc)
	if product == nil {
		return false
	}

	c.title = stringValue(product["name"])
	c.description = stringValue(product["description"])
	c.image = firstString(product["image"])
	c.brand = stringValue(product["brand"])
	if category := stringValue(product["category"]); category != "" {
		// Breadcrumb-style values keep only the leading segment.
		c.category = strings.TrimSpace(strings.SplitN(category, ">", 2)[0])
	}
	if sku := stringValue(product["sku"]); sku != "" {
		c.extras["sku"] = sku
	}
	if color := stringValue(product["color"]); color != "" {
		c.extras["color"] = color
	}
	c.fillFromOffers(product["offers"])
	c.fillFromRating(product["aggregateRating"])
	return true
}

// fillFromOffers reads price, currency, per-offer sizes and the item
// condition. offers is a single object or a list of them.
func (c *candidate) fillFromOffers(offers any) {
	for _, offer := range asList(offers) {
		m, ok := offer.(map[string]any)
		if !ok {
			continue
		}
		if c.price == nil {
			c.price = parseAmount(m["price"])
		}
		if c.currency == "" {
			c.currency = stringValue(m["priceCurrency"])
		}
		if size := stringValue(m["size"]); size != "" {
			c.sizes = append(c.sizes, size)
		}
		if _, ok := c.extras["condition"]; !ok {
			if condition := stringValue(m["itemCondition"]); condition != "" {
				condition = strings.TrimPrefix(condition, "https://schema.org/")
				condition = strings.TrimPrefix(condition, "http://schema.org/")
				c.extras["condition"] = condition
			}
		}
	}
}

func (c *candidate) fillFromRating(rating any) {
	m, ok := rating.(map[string]any)
	if !ok {
		return
	}
	if value := parseAmount(m["ratingValue"]); value != nil {
		c.extras["rating"] = *value
	}
	if count := parseAmount(m["reviewCount"]); count != nil {
		c.extras["review_count"] = int(*count)
	}
}

// findProductLD scans ld+json scripts for the first @type Product node,
// looking inside top-level arrays and @graph containers.
func findProductLD(doc *goquery.Document) map[string]any {
	var product map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		product = productNode(payload)
		return product == nil
	})
	return product
}

func productNode(node any) map[string]any {
	switch v := node.(type) {
	case map[string]any:
		if isProductType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return productNode(graph)
		}
	case []any:
		for _, item := range v {
			if found := productNode(item); found != nil {
				return found
			}
		}
	}
	return nil
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

// stringValue accepts a plain string or an object with a "name" field, the
// two shapes brand/category/condition values take.
func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case map[string]any:
		if name, ok := s["name"].(string); ok {
			return strings.TrimSpace(name)
		}
		if id, ok := s["@id"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// firstString accepts a string or a list and returns the first string found.
func firstString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []any:
		for _, item := range s {
			if found := firstString(item); found != "" {
				return found
			}
		}
	case map[string]any:
		return stringValue(s["url"])
	}
	return ""
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case map[string]any:
		return []any{l}
	default:
		return nil
	}
}

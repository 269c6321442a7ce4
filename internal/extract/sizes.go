package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var defaultSizeSelectors = []string{
	"[data-size]",
	".size-selector button",
	".product-size option",
	`button[aria-label*="size"]`,
}

// sizePlaceholders are control labels that appear inside size widgets but
// are not sizes.
var sizePlaceholders = map[string]struct{}{
	"size":        {},
	"select size": {},
	"choose size": {},
}

// scanSizes walks the selector list and returns the cleaned sizes from the
// first selector with any usable hits. Later selectors are not consulted
// once one matched.
func scanSizes(doc *goquery.Document, selectors []string) []string {
	if len(selectors) == 0 {
		selectors = defaultSizeSelectors
	}
	for _, selector := range selectors {
		var raw []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			value := strings.TrimSpace(s.Text())
			if value == "" {
				if v, ok := s.Attr("data-size"); ok {
					value = strings.TrimSpace(v)
				}
			}
			if value == "" {
				if v, ok := s.Attr("value"); ok {
					value = strings.TrimSpace(v)
				}
			}
			raw = append(raw, value)
		})
		if cleaned := cleanSizes(raw); len(cleaned) > 0 {
			return cleaned
		}
	}
	return nil
}

// cleanSizes drops empties and placeholder labels and dedups preserving
// order.
func cleanSizes(raw []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, size := range raw {
		size = strings.TrimSpace(size)
		if size == "" {
			continue
		}
		if _, placeholder := sizePlaceholders[strings.ToLower(size)]; placeholder {
			continue
		}
		if _, dup := seen[size]; dup {
			continue
		}
		seen[size] = struct{}{}
		out = append(out, size)
	}
	return out
}

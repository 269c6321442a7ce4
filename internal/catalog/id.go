package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// itemIDPattern captures the numeric suffix of an item path, the stable
// article number embedded in detail-page URLs (".../product/wool-coat-1217076002/").
var itemIDPattern = regexp.MustCompile(`/[^/]+-(\d+)/?$`)

// DeriveID resolves the stable record id for a detail-page URL.
// The numeric suffix of the item path is preferred; URLs without one fall
// back to a full 64-bit hash of the canonical URL, which is stable across
// runs and collision-resistant, unlike a truncated modulus.
func DeriveID(prefix, sourceURL string) (string, error) {
	canonical, err := CanonicalURL(sourceURL)
	if err != nil {
		return "", err
	}
	if m := itemIDPattern.FindStringSubmatch(canonical); m != nil {
		return fmt.Sprintf("%s_%s", prefix, m[1]), nil
	}
	return fmt.Sprintf("%s_%016x", prefix, xxhash.Sum64String(canonical)), nil
}

// CanonicalURL normalizes a URL for deduplication and id derivation:
// lowercased scheme and host, fragment and query stripped.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = ""
	return u.String(), nil
}

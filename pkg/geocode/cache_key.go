package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// cacheKey returns the SHA-256 hex of the normalized query, so trivially
// different spellings of the same query share a cache row.
func cacheKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

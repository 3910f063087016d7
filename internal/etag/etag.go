package etag

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/nlstn/go-datagrid/internal/record"
)

// Generate creates a weak ETag for a product from every field value, so any
// edit produces a different tag.
func Generate(p record.Product) string {
	d := xxhash.New()
	for _, part := range []string{
		p.ID,
		p.Name,
		p.Category,
		p.Price.String(),
		strconv.FormatInt(p.Stock, 10),
		string(p.Status),
	} {
		_, _ = d.WriteString(part) //nolint:errcheck
		_, _ = d.Write([]byte{0})  //nolint:errcheck
	}

	// Return as quoted ETag (weak ETag format: W/"hash")
	return `W/"` + strconv.FormatUint(d.Sum64(), 16) + `"`
}

// Parse extracts the ETag value from a quoted ETag string
// Handles both strong ("value") and weak (W/"value") ETags
func Parse(etagHeader string) string {
	etagHeader = strings.TrimSpace(etagHeader)
	if etagHeader == "" {
		return ""
	}

	// Remove W/ prefix if present (weak ETag)
	etagHeader = strings.TrimPrefix(etagHeader, "W/")

	// Remove quotes
	if len(etagHeader) >= 2 && etagHeader[0] == '"' && etagHeader[len(etagHeader)-1] == '"' {
		return etagHeader[1 : len(etagHeader)-1]
	}

	return etagHeader
}

// Match checks if the provided If-Match header value matches the current ETag.
// Returns true if they match or if ifMatch is "*" (match any).
// A comma-separated list matches when any member does.
func Match(ifMatch string, currentETag string) bool {
	if ifMatch == "" {
		return true // No If-Match header means no precondition
	}

	// "*" matches any ETag (entity must exist)
	if strings.TrimSpace(ifMatch) == "*" {
		return currentETag != ""
	}

	current := Parse(currentETag)
	for _, candidate := range strings.Split(ifMatch, ",") {
		if Parse(candidate) == current {
			return true
		}
	}
	return false
}

// NoneMatch checks if the provided If-None-Match header value does NOT match the current ETag.
// Returns false when they match, meaning the resource has not changed and a 304 is due.
func NoneMatch(ifNoneMatch string, currentETag string) bool {
	if ifNoneMatch == "" {
		return true
	}

	// "*" matches any existing entity, so none-match is false if entity exists
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return currentETag == ""
	}

	return !Match(ifNoneMatch, currentETag)
}

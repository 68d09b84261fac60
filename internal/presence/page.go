package presence

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SearchSeparator joins the current page and an active search query in one field
const SearchSeparator = "|search:"

// EncodePage stores page and an optional search query in a single string
func EncodePage(page string, searchQuery *string) string {
	if searchQuery == nil {
		return page
	}
	q := strings.TrimSpace(*searchQuery)
	if q == "" {
		return page
	}
	return page + SearchSeparator + q
}

// DecodePage splits a stored page back into page and search query.
// The first separator wins so a query may itself contain the separator.
func DecodePage(stored string) (page, searchQuery string) {
	if i := strings.Index(stored, SearchSeparator); i >= 0 {
		return stored[:i], stored[i+len(SearchSeparator):]
	}
	return stored, ""
}

// SessionHash derives the stored fingerprint of a session id
func SessionHash(sessionID string) string {
	sum := blake2b.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}

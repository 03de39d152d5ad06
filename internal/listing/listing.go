// Package listing recovers marketplace listing identifiers from page markup
// and builds canonical listing URLs from them.
package listing

import (
	"fmt"
	"net/url"
	"regexp"
)

var (
	itemPathRe = regexp.MustCompile(`/items/(\d+)`)
	digitsRe   = regexp.MustCompile(`^\d+$`)
)

// Listing is a listing identifier paired with its canonical URL. Title and
// Price are filled in only when a detail page was evaluated.
type Listing struct {
	ID    string   `json:"id"`
	URL   string   `json:"url"`
	Title string   `json:"title,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// Extraction is the unique set of listings referenced by a page, in order
// of first appearance.
type Extraction struct {
	IDs  []string
	URLs []string
}

// Len returns the number of unique listings
func (e Extraction) Len() int {
	return len(e.IDs)
}

// Listings pairs identifiers with their URLs
func (e Extraction) Listings() []Listing {
	out := make([]Listing, len(e.IDs))
	for i := range e.IDs {
		out[i] = Listing{ID: e.IDs[i], URL: e.URLs[i]}
	}
	return out
}

// BaseOrigin returns scheme://host of a URL
func BaseOrigin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// CanonicalURL builds the listing URL for id under base
func CanonicalURL(base, id string) string {
	return base + "/items/" + id
}

// Extract finds every /items/<digits> reference in markup. It never fails;
// markup without matches yields an empty extraction.
func Extract(markup, base string) Extraction {
	matches := itemPathRe.FindAllStringSubmatch(markup, -1)

	seen := make(map[string]struct{}, len(matches))
	ext := Extraction{
		IDs:  make([]string, 0, len(matches)),
		URLs: make([]string, 0, len(matches)),
	}
	for _, m := range matches {
		id := m[1]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ext.IDs = append(ext.IDs, id)
		ext.URLs = append(ext.URLs, CanonicalURL(base, id))
	}
	return ext
}

// ToItemID normalizes a bare numeric string or a listing URL to its
// identifier. ok is false for anything else.
func ToItemID(value string) (id string, ok bool) {
	if m := itemPathRe.FindStringSubmatch(value); m != nil {
		return m[1], true
	}
	if digitsRe.MatchString(value) {
		return value, true
	}
	return "", false
}

// IsItemID reports whether value is a bare decimal identifier
func IsItemID(value string) bool {
	return digitsRe.MatchString(value)
}

// Package documents maps retrieved document identities to the public
// government portal: citation URL synthesis and per-document chunk
// lookup.
package documents

import (
	"fmt"
	"strings"

	"github.com/lexlanka/gavel/pkg/indexstore"
)

// DefaultHost is the public portal serving the source PDFs.
const DefaultHost = "documents.gov.lk"

// plurals maps singular document types to the portal's path segment.
// Unknown types pass through unchanged.
var plurals = map[string]string{
	"bill":    "bills",
	"act":     "acts",
	"gazette": "gazettes",
}

// Pluralize returns the portal path segment for a document type.
// "constitution" is served unpluralized.
func Pluralize(docType string) string {
	if p, ok := plurals[strings.ToLower(docType)]; ok {
		return p
	}
	return docType
}

// langLetters maps language tags to the portal's filename suffix.
var langLetters = map[string]string{
	"en": "E",
	"si": "S",
	"ta": "T",
}

// URL renders the portal view URL for a document. Names follow the
// convention `<path-with-dashes>_<year>_<letter>`: the trailing seven
// characters carry the year and language letter, the rest becomes the
// path with dashes turned into slashes. Names without that tail fall
// back to the whole stem as the path.
//
//	URL("documents.gov.lk", "bills", "01-2013_2024_E")
//	  → https://documents.gov.lk/view/bills/01/2013/2024_E.pdf
func URL(host, docType, name string) string {
	return URLForLang(host, docType, name, "")
}

// URLForLang renders the portal URL with the language letter replaced
// for the requested language. An empty or unknown lang keeps the
// letter embedded in the name.
func URLForLang(host, docType, name, lang string) string {
	if host == "" {
		host = DefaultHost
	}
	plural := Pluralize(docType)

	stem := name
	if idx := strings.LastIndex(stem, "."); idx > 0 {
		stem = stem[:idx]
	}

	path, tail, ok := splitTail(stem)
	if !ok {
		return fmt.Sprintf("https://%s/view/%s/%s.pdf", host, plural, stem)
	}

	year := tail[1:5]
	letter := tail[6:]
	if l, known := langLetters[strings.ToLower(lang)]; known {
		letter = l
	}

	return fmt.Sprintf("https://%s/view/%s/%s/%s_%s.pdf",
		host, plural, strings.ReplaceAll(path, "-", "/"), year, letter)
}

// splitTail separates the `_YYYY_L` tail from a document stem. It
// reports false when the stem is too short or the tail does not match
// the shape.
func splitTail(stem string) (path, tail string, ok bool) {
	if len(stem) < 8 {
		return "", "", false
	}

	tail = stem[len(stem)-7:]
	if tail[0] != '_' || tail[5] != '_' {
		return "", "", false
	}
	for _, r := range tail[1:5] {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}

	return stem[:len(stem)-7], tail, true
}

// Chunks returns the contents of every stored chunk belonging to the
// named document, filtered to printable text. The store keys chunks by
// document name inside the type's collection.
func Chunks(store *indexstore.Store, docType, name string) []string {
	snap := store.Snapshot()

	var out []string
	for _, c := range snap.Collections {
		for _, doc := range c.Docs {
			if doc.Name != name {
				continue
			}
			if doc.Type != "" && docType != "" && !strings.EqualFold(doc.Type, docType) {
				continue
			}
			if text := cleanText(doc.Content); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// cleanText strips control characters, keeping tabs and newlines.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

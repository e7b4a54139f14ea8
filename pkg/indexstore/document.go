package indexstore

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document is one retrievable unit from a collection. Content is
// opaque to retrieval; Name and Type drive citation URL construction
// downstream.
type Document struct {
	Content       string         `mapstructure:"content"`
	Name          string         `mapstructure:"name"`
	Type          string         `mapstructure:"type"`
	CollectionKey string         `mapstructure:"-"`
	Metadata      map[string]any `mapstructure:",remain"`
}

// contentIDPrefix is the number of content bytes hashed when a
// document has no name to identify it by.
const contentIDPrefix = 100

// ID returns the document's dedup identity: (collection_key, name),
// falling back to a content-prefix hash when the name is missing.
func (d *Document) ID() string {
	if d.Name != "" {
		return d.CollectionKey + "/" + d.Name
	}

	prefix := d.Content
	if len(prefix) > contentIDPrefix {
		prefix = prefix[:contentIDPrefix]
	}
	sum := sha256.Sum256([]byte(prefix))
	return d.CollectionKey + "/sha:" + hex.EncodeToString(sum[:8])
}

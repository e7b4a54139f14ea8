package indexstore

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// gzipMagic is the two-byte gzip header. Compression is sniffed from
// content, not the file extension: volumes in the wild carry gzipped
// files named plain .tsv.
var gzipMagic = []byte{0x1f, 0x8b}

// tsvResult carries the outcome of a TSV load.
type tsvResult struct {
	Docs     []Document
	Skipped  int
	Encoding string
}

// readTSV loads the tab-separated document table at path for the
// given collection key. Gzip is detected by magic bytes, decodings
// are tried in a fixed order, and malformed rows are skipped rather
// than failing the load.
func readTSV(path, collectionKey string) (*tsvResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if bytes.HasPrefix(raw, gzipMagic) {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		raw, err = io.ReadAll(gz)
		gz.Close()
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", path, err)
		}
	}

	text, encoding, err := decodeText(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	docs, skipped := parseTSV(text, collectionKey)
	return &tsvResult{Docs: docs, Skipped: skipped, Encoding: encoding}, nil
}

// decodeText tries utf-8, latin-1 and cp1252 in order and accepts
// the first decoding that succeeds.
func decodeText(raw []byte) (string, string, error) {
	if utf8.Valid(raw) {
		return string(raw), "utf-8", nil
	}

	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return string(decoded), "latin-1", nil
	}

	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
		return string(decoded), "cp1252", nil
	}

	return "", "", fmt.Errorf("no supported encoding decodes the file")
}

// parseTSV splits text into header-mapped rows. Rows whose field
// count disagrees with the header are counted and skipped. Missing
// columns get defaults: name falls back to the row index, type to the
// collection key, content to empty.
func parseTSV(text, collectionKey string) ([]Document, int) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, 0
	}

	header := strings.Split(strings.TrimRight(lines[0], "\r"), "\t")
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var docs []Document
	skipped := 0

	for rowIdx, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != len(header) {
			skipped++
			continue
		}

		doc := Document{CollectionKey: collectionKey}
		metadata := make(map[string]any)

		for name, col := range columns {
			value := fields[col]
			switch name {
			case "content":
				doc.Content = value
			case "name":
				doc.Name = value
			case "type":
				doc.Type = value
			default:
				metadata[name] = value
			}
		}

		if doc.Name == "" {
			doc.Name = strconv.Itoa(rowIdx)
		}
		if doc.Type == "" {
			doc.Type = collectionKey
		}
		if len(metadata) > 0 {
			doc.Metadata = metadata
		}

		docs = append(docs, doc)
	}

	return docs, skipped
}

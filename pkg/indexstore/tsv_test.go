package indexstore

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestReadTSVBasic(t *testing.T) {
	tsv := "name\ttype\tcontent\tyear\n" +
		"01-2013_2024_E\tbill\tBudget provisions.\t2024\n" +
		"02-2014_2024_E\tact\tTax schedule.\t2024\n"
	path := writeFile(t, t.TempDir(), "bills.tsv", []byte(tsv))

	result, err := readTSV(path, "bills")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", result.Encoding)
	assert.Zero(t, result.Skipped)
	require.Len(t, result.Docs, 2)

	doc := result.Docs[0]
	assert.Equal(t, "01-2013_2024_E", doc.Name)
	assert.Equal(t, "bill", doc.Type)
	assert.Equal(t, "Budget provisions.", doc.Content)
	assert.Equal(t, "bills", doc.CollectionKey)
	assert.Equal(t, map[string]any{"year": "2024"}, doc.Metadata)
}

func TestReadTSVGzipSniffedByMagic(t *testing.T) {
	tsv := "name\tcontent\nd1\thello\n"
	// Gzipped content under a plain .tsv name; detection is by the
	// magic bytes, not the extension.
	path := writeFile(t, t.TempDir(), "acts.tsv", gzipBytes(t, []byte(tsv)))

	result, err := readTSV(path, "acts")
	require.NoError(t, err)
	require.Len(t, result.Docs, 1)
	assert.Equal(t, "hello", result.Docs[0].Content)
}

func TestReadTSVLatin1Fallback(t *testing.T) {
	// 0xE9 is é in latin-1 and invalid as a standalone utf-8 byte.
	tsv := []byte("name\tcontent\nd1\td\xe9cret\n")
	path := writeFile(t, t.TempDir(), "gazettes.tsv", tsv)

	result, err := readTSV(path, "gazettes")
	require.NoError(t, err)
	assert.Equal(t, "latin-1", result.Encoding)
	require.Len(t, result.Docs, 1)
	assert.Equal(t, "décret", result.Docs[0].Content)
}

func TestReadTSVSkipsMalformedRows(t *testing.T) {
	tsv := "name\ttype\tcontent\n" +
		"d1\tbill\tok row\n" +
		"broken row with no tabs\n" +
		"d2\tbill\textra\tfield\n" +
		"d3\tbill\tanother ok row\n"
	path := writeFile(t, t.TempDir(), "bills.tsv", []byte(tsv))

	result, err := readTSV(path, "bills")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Docs, 2)
	assert.Equal(t, "d1", result.Docs[0].Name)
	assert.Equal(t, "d3", result.Docs[1].Name)
}

func TestReadTSVColumnDefaults(t *testing.T) {
	tsv := "content\nfirst row text\nsecond row text\n"
	path := writeFile(t, t.TempDir(), "acts.tsv", []byte(tsv))

	result, err := readTSV(path, "acts")
	require.NoError(t, err)
	require.Len(t, result.Docs, 2)

	// Name defaults to the row index, type to the collection key.
	assert.Equal(t, "0", result.Docs[0].Name)
	assert.Equal(t, "acts", result.Docs[0].Type)
	assert.Equal(t, "1", result.Docs[1].Name)
}

func TestReadTSVEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.tsv", nil)

	result, err := readTSV(path, "empty")
	require.NoError(t, err)
	assert.Empty(t, result.Docs)
}

func TestDocumentID(t *testing.T) {
	named := Document{CollectionKey: "bills", Name: "01-2013_2024_E"}
	assert.Equal(t, "bills/01-2013_2024_E", named.ID())

	unnamed := Document{CollectionKey: "bills", Content: "some body"}
	assert.Contains(t, unnamed.ID(), "bills/sha:")

	other := Document{CollectionKey: "bills", Content: "entirely different"}
	assert.NotEqual(t, unnamed.ID(), other.ID())
}

// Package bm25 implements Okapi BM25 ranking over pre-tokenized
// corpora. Corpora arrive already tokenized from the data volume, so
// the index never re-tokenizes documents; queries are tokenized with
// the same rules the indexing pipeline used.
package bm25

import (
	"math"
	"strings"
	"unicode"
)

// Okapi BM25 parameters.
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// Index holds the precomputed term statistics for one corpus.
type Index struct {
	k1      float64
	b       float64
	epsilon float64

	corpusSize int
	avgdl      float64
	docLens    []float64
	docFreqs   []map[string]int
	idf        map[string]float64
}

// NewIndex builds an index over a pre-tokenized corpus with the
// default Okapi parameters.
func NewIndex(corpus [][]string) *Index {
	return NewIndexWithParams(corpus, DefaultK1, DefaultB, DefaultEpsilon)
}

// NewIndexWithParams builds an index with explicit parameters.
func NewIndexWithParams(corpus [][]string, k1, b, epsilon float64) *Index {
	x := &Index{
		k1:         k1,
		b:          b,
		epsilon:    epsilon,
		corpusSize: len(corpus),
		docLens:    make([]float64, len(corpus)),
		docFreqs:   make([]map[string]int, len(corpus)),
		idf:        make(map[string]float64),
	}

	// nd: number of documents containing each term
	nd := make(map[string]int)
	totalLen := 0
	for i, doc := range corpus {
		x.docLens[i] = float64(len(doc))
		totalLen += len(doc)

		freqs := make(map[string]int, len(doc))
		for _, term := range doc {
			freqs[term]++
		}
		x.docFreqs[i] = freqs

		for term := range freqs {
			nd[term]++
		}
	}
	if x.corpusSize > 0 {
		x.avgdl = float64(totalLen) / float64(x.corpusSize)
	}

	x.calcIDF(nd)
	return x
}

// calcIDF computes per-term inverse document frequencies. Terms found
// in more than half the corpus get a negative raw idf; those are
// floored to epsilon times the average idf so common terms still
// contribute a small positive weight.
func (x *Index) calcIDF(nd map[string]int) {
	if len(nd) == 0 {
		return
	}

	idfSum := 0.0
	var negative []string
	for term, freq := range nd {
		idf := math.Log(float64(x.corpusSize)-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		x.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}

	averageIDF := idfSum / float64(len(x.idf))
	eps := x.epsilon * averageIDF
	for _, term := range negative {
		x.idf[term] = eps
	}
}

// Size returns the number of documents in the corpus.
func (x *Index) Size() int {
	return x.corpusSize
}

// Scores returns the BM25 score of every document against the query
// tokens, indexed by corpus position. Unknown query terms contribute
// zero.
func (x *Index) Scores(query []string) []float64 {
	scores := make([]float64, x.corpusSize)
	if x.corpusSize == 0 {
		return scores
	}

	for _, term := range query {
		idf, ok := x.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range x.docFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			denom := tf + x.k1*(1-x.b+x.b*x.docLens[i]/x.avgdl)
			scores[i] += idf * (tf * (x.k1 + 1) / denom)
		}
	}
	return scores
}

// Tokenize lowercases text and splits it on any run of non-word
// characters. Word characters are Unicode letters, digits and the
// underscore, matching the rules used when the corpora were built.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

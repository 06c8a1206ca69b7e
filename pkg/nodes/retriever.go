package nodes

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

// BM25 constants, the values most implementations settle on.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

func init() {
	node.Register("BM25Retriever", NewBM25Retriever, node.Schema{
		"document_store": {Kind: node.KindComponent, Required: true},
		"top_k":          {Kind: node.KindInt, Default: 10},
	})
}

// BM25Retriever ranks the documents of its store against the query with
// BM25 and returns the top_k best. The store is a component reference
// resolved by the engine; replicas of the retriever share it. Zero matches
// is a valid, empty result, not an error.
type BM25Retriever struct {
	store DocumentStore
}

// NewBM25Retriever is the BM25Retriever factory.
func NewBM25Retriever(params node.Params) (node.Handler, error) {
	store, ok := params["document_store"].(DocumentStore)
	if !ok {
		return nil, fmt.Errorf("BM25Retriever: document_store must reference a document store component, got %T", params["document_store"])
	}
	return &BM25Retriever{store: store}, nil
}

func (r *BM25Retriever) Invoke(ctx context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	topK := params.Int("top_k", 10)
	query := inputs[0].Query
	filters := inputs[0].Filters

	docs, err := r.store.FilterDocuments(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	ranked := rankBM25(query, docs)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return &node.Message{Query: query, Filters: filters, Documents: ranked}, nil
}

// rankBM25 scores docs against query and returns those with a positive
// score, best first. Ties keep store order, which is deterministic.
func rankBM25(query string, docs []node.Document) []node.Document {
	terms := tokenize(query)
	if len(terms) == 0 || len(docs) == 0 {
		return nil
	}

	freqs := make([]map[string]int, len(docs))
	totalLen := 0
	for i, d := range docs {
		freqs[i] = termFreq(d.Content)
		for _, n := range freqs[i] {
			totalLen += n
		}
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		return nil
	}

	// Document frequency per query term.
	df := make(map[string]int, len(terms))
	for _, t := range terms {
		for i := range docs {
			if freqs[i][t] > 0 {
				df[t]++
			}
		}
	}

	n := float64(len(docs))
	var ranked []node.Document
	for i, d := range docs {
		docLen := 0
		for _, c := range freqs[i] {
			docLen += c
		}
		score := 0.0
		for _, t := range terms {
			tf := float64(freqs[i][t])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(docLen)/avgLen))
			score += idf * norm
		}
		if score > 0 {
			d.Score = score
			ranked = append(ranked, d)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return ' '
	}, s)))
}

func termFreq(s string) map[string]int {
	freq := make(map[string]int)
	for _, t := range tokenize(s) {
		freq[t]++
	}
	return freq
}

package nodes

import (
	"context"
	"fmt"
	"sort"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

func init() {
	node.Register("JoinDocuments", NewJoinDocuments, node.Schema{
		"join_mode":  {Kind: node.KindString, Default: "concatenate"},
		"top_k_join": {Kind: node.KindInt, Default: 0},
	})
}

// JoinDocuments merges the document lists of all upstream branches into one.
// In concatenate mode documents are deduplicated by ID, keeping the highest
// score seen for each, and sorted by score. In reciprocal_rank_fusion mode
// each document is rescored by its rank within each branch, which rewards
// documents multiple retrievers agree on. top_k_join of 0 keeps everything.
type JoinDocuments struct{}

// NewJoinDocuments is the JoinDocuments factory.
func NewJoinDocuments(params node.Params) (node.Handler, error) {
	mode := params.String("join_mode", "concatenate")
	if mode != "concatenate" && mode != "reciprocal_rank_fusion" {
		return nil, fmt.Errorf("JoinDocuments: unknown join_mode %q", mode)
	}
	return &JoinDocuments{}, nil
}

func (j *JoinDocuments) Invoke(ctx context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	var docs []node.Document
	switch params.String("join_mode", "concatenate") {
	case "reciprocal_rank_fusion":
		docs = fuseByRank(inputs)
	default:
		docs = concatenate(inputs)
	}

	if k := params.Int("top_k_join", 0); k > 0 && len(docs) > k {
		docs = docs[:k]
	}

	out := &node.Message{Documents: docs}
	if len(inputs) > 0 {
		out.Query = inputs[0].Query
		out.Filters = inputs[0].Filters
	}
	return out, nil
}

func concatenate(inputs []*node.Message) []node.Document {
	best := map[string]node.Document{}
	var ids []string
	for _, in := range inputs {
		for _, d := range in.Documents {
			if prev, ok := best[d.ID]; ok {
				if d.Score > prev.Score {
					best[d.ID] = d
				}
				continue
			}
			best[d.ID] = d
			ids = append(ids, d.ID)
		}
	}
	docs := make([]node.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, best[id])
	}
	sort.SliceStable(docs, func(a, b int) bool { return docs[a].Score > docs[b].Score })
	return docs
}

// fuseByRank implements reciprocal rank fusion with the standard k=61
// dampening constant. Branch order and in-branch rank are the only inputs,
// so incomparable scores from different retrievers fuse cleanly.
func fuseByRank(inputs []*node.Message) []node.Document {
	const k = 61

	scores := map[string]float64{}
	first := map[string]node.Document{}
	var ids []string
	for _, in := range inputs {
		for rank, d := range in.Documents {
			scores[d.ID] += 1 / float64(k+rank)
			if _, ok := first[d.ID]; !ok {
				first[d.ID] = d
				ids = append(ids, d.ID)
			}
		}
	}

	docs := make([]node.Document, 0, len(ids))
	for _, id := range ids {
		d := first[id]
		d.Score = scores[id]
		docs = append(docs, d)
	}
	sort.SliceStable(docs, func(a, b int) bool { return docs[a].Score > docs[b].Score })
	return docs
}

package nodes

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

func init() {
	node.Register("ExtractiveReader", NewExtractiveReader, node.Schema{
		"top_k": {Kind: node.KindInt, Default: 5},
	})
}

// ExtractiveReader picks answer spans out of retrieved documents: each
// sentence is scored by query-term coverage and the top_k best become
// answers, with the source document recorded for provenance. An empty
// document list yields an empty answer list, never an error, so a
// no-match retrieval flows through as "no answer".
type ExtractiveReader struct{}

// NewExtractiveReader is the ExtractiveReader factory.
func NewExtractiveReader(node.Params) (node.Handler, error) {
	return &ExtractiveReader{}, nil
}

func (r *ExtractiveReader) Invoke(_ context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	topK := params.Int("top_k", 5)
	query := inputs[0].Query
	terms := tokenize(query)

	var answers []node.Answer
	for _, in := range inputs {
		for _, doc := range in.Documents {
			for _, sentence := range splitSentences(doc.Content) {
				score := coverage(terms, sentence)
				if score == 0 {
					continue
				}
				answers = append(answers, node.Answer{
					Answer:     sentence,
					Score:      score,
					Context:    doc.Content,
					DocumentID: doc.ID,
				})
			}
		}
	}
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].Score > answers[j].Score })
	if len(answers) > topK {
		answers = answers[:topK]
	}

	out := &node.Message{Query: query, Answers: answers}
	if len(answers) == 0 {
		out.Meta = map[string]any{"no_answer": true}
	}
	return out, nil
}

// coverage is the fraction of query terms present in the sentence, damped
// by sentence length so short precise sentences beat rambling ones.
func coverage(terms []string, sentence string) float64 {
	if len(terms) == 0 {
		return 0
	}
	freq := termFreq(sentence)
	hits := 0
	total := 0
	for _, c := range freq {
		total += c
	}
	for _, t := range terms {
		if freq[t] > 0 {
			hits++
		}
	}
	if hits == 0 || total == 0 {
		return 0
	}
	return float64(hits) / float64(len(terms)) / math.Sqrt(float64(total))
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if sentence := strings.TrimSpace(s[start : i+1]); sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

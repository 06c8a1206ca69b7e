package nodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

func init() {
	node.Register("Preprocessor", NewPreprocessor, node.Schema{
		"split_length":     {Kind: node.KindInt, Default: 200},
		"split_overlap":    {Kind: node.KindInt, Default: 0},
		"clean_whitespace": {Kind: node.KindBool, Default: true},
	})
}

// Preprocessor splits documents into chunks of split_length words with
// split_overlap words of overlap between consecutive chunks. Each chunk
// becomes its own document inheriting the parent's metadata plus a
// _split_id, so a retriever works at chunk granularity.
type Preprocessor struct{}

// NewPreprocessor is the Preprocessor factory.
func NewPreprocessor(node.Params) (node.Handler, error) {
	return &Preprocessor{}, nil
}

func (p *Preprocessor) Invoke(_ context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	length := params.Int("split_length", 200)
	overlap := params.Int("split_overlap", 0)
	clean := params.Bool("clean_whitespace", true)
	if length <= 0 {
		return nil, fmt.Errorf("split_length must be positive, got %d", length)
	}
	if overlap < 0 || overlap >= length {
		return nil, fmt.Errorf("split_overlap must be in [0, split_length), got %d", overlap)
	}

	out := &node.Message{}
	for _, in := range inputs {
		for _, doc := range in.Documents {
			content := doc.Content
			if clean {
				content = strings.Join(strings.Fields(content), " ")
			}
			for i, chunk := range splitWords(content, length, overlap) {
				meta := make(map[string]string, len(doc.Meta)+1)
				for k, v := range doc.Meta {
					meta[k] = v
				}
				meta["_split_id"] = strconv.Itoa(i)
				out.Documents = append(out.Documents, node.Document{
					ID:      uuid.NewString(),
					Content: chunk,
					Meta:    meta,
				})
			}
		}
	}
	return out, nil
}

// splitWords windows the words of content by length with overlap. An empty
// content yields no chunks.
func splitWords(content string, length, overlap int) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	step := length - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+length, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

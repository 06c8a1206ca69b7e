package nodes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

func init() {
	node.Register("TextConverter", NewTextConverter, node.Schema{
		"remove_empty_lines": {Kind: node.KindBool, Default: true},
	})
}

// TextConverter turns the file references of a File source into one
// document per file: the entry node of an indexing pipeline. Control
// characters are stripped; empty lines are dropped unless configured
// otherwise. Extraction from richer formats (PDF, HTML) is an external
// collaborator's job and out of scope here.
type TextConverter struct{}

// NewTextConverter is the TextConverter factory.
func NewTextConverter(node.Params) (node.Handler, error) {
	return &TextConverter{}, nil
}

func (c *TextConverter) Invoke(_ context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	removeEmpty := params.Bool("remove_empty_lines", true)

	out := &node.Message{}
	for _, in := range inputs {
		for _, path := range in.FilePaths {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("convert %q: %w", path, err)
			}
			content := cleanText(string(raw), removeEmpty)
			out.Documents = append(out.Documents, node.Document{
				ID:      uuid.NewString(),
				Content: content,
				Meta:    map[string]string{"name": filepath.Base(path)},
			})
		}
	}
	return out, nil
}

func cleanText(s string, removeEmptyLines bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	if !removeEmptyLines {
		return strings.TrimSpace(b.String())
	}
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

package nodes

import (
	"context"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(out, " ")
}

// ─── TestPreprocessor ─────────────────────────────────────────────────────────

func TestPreprocessor_SplitsByWordCount(t *testing.T) {
	h, err := NewPreprocessor(nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	out, err := h.Invoke(context.Background(), []*node.Message{
		{Documents: []node.Document{{ID: "d", Content: words(10), Meta: map[string]string{"name": "f"}}}},
	}, node.Params{"split_length": 4, "split_overlap": 0})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if len(out.Documents) != 3 {
		t.Fatalf("chunks = %d, want 3 (4+4+2 words)", len(out.Documents))
	}
	for i, d := range out.Documents {
		if got := len(strings.Fields(d.Content)); i < 2 && got != 4 {
			t.Errorf("chunk %d has %d words, want 4", i, got)
		}
		if d.Meta["name"] != "f" {
			t.Errorf("chunk %d lost parent meta: %v", i, d.Meta)
		}
	}
	if out.Documents[0].Meta["_split_id"] != "0" || out.Documents[2].Meta["_split_id"] != "2" {
		t.Errorf("split ids wrong: %v / %v", out.Documents[0].Meta, out.Documents[2].Meta)
	}
}

func TestPreprocessor_Overlap(t *testing.T) {
	h, _ := NewPreprocessor(nil)
	out, err := h.Invoke(context.Background(), []*node.Message{
		{Documents: []node.Document{{ID: "d", Content: "a b c d e f"}}},
	}, node.Params{"split_length": 4, "split_overlap": 2})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out.Documents) != 2 {
		t.Fatalf("chunks = %d, want 2", len(out.Documents))
	}
	if out.Documents[0].Content != "a b c d" || out.Documents[1].Content != "c d e f" {
		t.Errorf("chunks = %q / %q, want 2-word overlap",
			out.Documents[0].Content, out.Documents[1].Content)
	}
}

func TestPreprocessor_CleansWhitespace(t *testing.T) {
	h, _ := NewPreprocessor(nil)
	out, err := h.Invoke(context.Background(), []*node.Message{
		{Documents: []node.Document{{ID: "d", Content: "  a\t\tb \n c  "}}},
	}, node.Params{"split_length": 10, "clean_whitespace": true})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := out.Documents[0].Content; got != "a b c" {
		t.Errorf("content = %q, want normalized whitespace", got)
	}
}

func TestPreprocessor_EmptyDocumentYieldsNoChunks(t *testing.T) {
	h, _ := NewPreprocessor(nil)
	out, err := h.Invoke(context.Background(), []*node.Message{
		{Documents: []node.Document{{ID: "d", Content: "   "}}},
	}, node.Params{"split_length": 5})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out.Documents) != 0 {
		t.Errorf("chunks = %d, want 0", len(out.Documents))
	}
}

func TestPreprocessor_InvalidParams(t *testing.T) {
	h, _ := NewPreprocessor(nil)
	in := []*node.Message{{Documents: []node.Document{{ID: "d", Content: "a b"}}}}

	if _, err := h.Invoke(context.Background(), in, node.Params{"split_length": 0}); err == nil {
		t.Error("expected error for split_length 0")
	}
	if _, err := h.Invoke(context.Background(), in, node.Params{"split_length": 4, "split_overlap": 4}); err == nil {
		t.Error("expected error for overlap >= length")
	}
	if _, err := h.Invoke(context.Background(), in, node.Params{"split_length": 4, "split_overlap": -1}); err == nil {
		t.Error("expected error for negative overlap")
	}
}

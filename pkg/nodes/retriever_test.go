package nodes

import (
	"context"
	"testing"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

func storeWith(t *testing.T, docs []node.Document) *InMemoryDocumentStore {
	t.Helper()
	h, _ := NewInMemoryDocumentStore(nil)
	s := h.(*InMemoryDocumentStore)
	if _, err := s.WriteDocuments(context.Background(), docs); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

// ─── TestBM25Retriever ────────────────────────────────────────────────────────

func TestBM25Retriever_RanksByRelevance(t *testing.T) {
	store := storeWith(t, []node.Document{
		{ID: "1", Content: "the solar system has eight planets"},
		{ID: "2", Content: "planets orbit the sun, and the sun is a star among planets"},
		{ID: "3", Content: "bread is baked in an oven"},
	})

	h, err := NewBM25Retriever(node.Params{"document_store": store})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	out, err := h.Invoke(context.Background(), []*node.Message{
		{Query: "planets"},
	}, node.Params{"top_k": 10})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if len(out.Documents) != 2 {
		t.Fatalf("retrieved %d documents, want the 2 mentioning planets", len(out.Documents))
	}
	for _, d := range out.Documents {
		if d.ID == "3" {
			t.Error("irrelevant document retrieved")
		}
		if d.Score <= 0 {
			t.Errorf("document %s has non-positive score %v", d.ID, d.Score)
		}
	}
	if out.Documents[0].Score < out.Documents[1].Score {
		t.Errorf("results not sorted by score: %v then %v",
			out.Documents[0].Score, out.Documents[1].Score)
	}
	if out.Query != "planets" {
		t.Errorf("query not carried through: %q", out.Query)
	}
}

func TestBM25Retriever_TopK(t *testing.T) {
	store := storeWith(t, []node.Document{
		{ID: "1", Content: "fish swim"},
		{ID: "2", Content: "fish eat"},
		{ID: "3", Content: "fish sleep"},
	})
	h, _ := NewBM25Retriever(node.Params{"document_store": store})

	out, err := h.Invoke(context.Background(), []*node.Message{
		{Query: "fish"},
	}, node.Params{"top_k": 2})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out.Documents) != 2 {
		t.Errorf("retrieved %d, want top_k=2", len(out.Documents))
	}
}

func TestBM25Retriever_FiltersNarrowCorpus(t *testing.T) {
	store := storeWith(t, []node.Document{
		{ID: "1", Content: "wine from france", Meta: map[string]string{"country": "fr"}},
		{ID: "2", Content: "wine from italy", Meta: map[string]string{"country": "it"}},
	})
	h, _ := NewBM25Retriever(node.Params{"document_store": store})

	out, err := h.Invoke(context.Background(), []*node.Message{
		{Query: "wine", Filters: map[string]string{"country": "it"}},
	}, node.Params{"top_k": 10})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out.Documents) != 1 || out.Documents[0].ID != "2" {
		t.Errorf("filtered retrieval = %+v, want only the italian document", out.Documents)
	}
}

func TestBM25Retriever_NoMatchesIsEmptyNotError(t *testing.T) {
	store := storeWith(t, []node.Document{{ID: "1", Content: "completely unrelated"}})
	h, _ := NewBM25Retriever(node.Params{"document_store": store})

	out, err := h.Invoke(context.Background(), []*node.Message{
		{Query: "xylophone"},
	}, node.Params{"top_k": 10})
	if err != nil {
		t.Fatalf("zero matches must not be an error: %v", err)
	}
	if len(out.Documents) != 0 {
		t.Errorf("documents = %+v, want none", out.Documents)
	}
}

func TestBM25Retriever_RequiresStoreInstance(t *testing.T) {
	if _, err := NewBM25Retriever(node.Params{"document_store": "unresolved"}); err == nil {
		t.Fatal("expected error when the store reference is not resolved to an instance")
	}
}

// ─── TestRankBM25 ─────────────────────────────────────────────────────────────

func TestRankBM25_RareTermsWeighMore(t *testing.T) {
	docs := []node.Document{
		{ID: "common", Content: "data data data processing"},
		{ID: "rare", Content: "data quasar processing"},
	}
	ranked := rankBM25("quasar data", docs)
	if len(ranked) != 2 {
		t.Fatalf("ranked = %d docs, want 2", len(ranked))
	}
	if ranked[0].ID != "rare" {
		t.Errorf("top doc = %s, want the one with the rare term", ranked[0].ID)
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, World! 42x")
	want := []string{"hello", "world", "42x"}
	if len(got) != len(want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokenize = %v, want %v", got, want)
		}
	}
}

package nodes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

// DocumentStore is the storage side of a store node. A store is used two
// ways: as an indexing-pipeline sink (documents written, count reported)
// and as the corpus behind a retriever, referenced through the retriever's
// document_store param.
type DocumentStore interface {
	WriteDocuments(ctx context.Context, docs []node.Document) (int, error)
	// FilterDocuments returns documents whose Meta matches every filter
	// entry. Nil or empty filters match everything.
	FilterDocuments(ctx context.Context, filters map[string]string) ([]node.Document, error)
	CountDocuments(ctx context.Context) (int, error)
}

func init() {
	node.Register("InMemoryDocumentStore", NewInMemoryDocumentStore, node.Schema{})
}

// InMemoryDocumentStore keeps documents in a map. Contents are lost at
// shutdown, which suits tests and notebooks; use BadgerDocumentStore when
// indexing must survive the process.
type InMemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]node.Document
}

// NewInMemoryDocumentStore is the InMemoryDocumentStore factory.
func NewInMemoryDocumentStore(node.Params) (node.Handler, error) {
	return &InMemoryDocumentStore{docs: make(map[string]node.Document)}, nil
}

// Invoke writes the documents of every input and reports the count. As a
// sink it makes the store usable as the terminal node of an indexing
// pipeline.
func (s *InMemoryDocumentStore) Invoke(ctx context.Context, inputs []*node.Message, _ node.Params) (*node.Message, error) {
	written := 0
	for _, in := range inputs {
		n, err := s.WriteDocuments(ctx, in.Documents)
		if err != nil {
			return nil, err
		}
		written += n
	}
	return &node.Message{Meta: map[string]any{"written": written}}, nil
}

func (s *InMemoryDocumentStore) WriteDocuments(_ context.Context, docs []node.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			return 0, fmt.Errorf("document with empty ID")
		}
		s.docs[d.ID] = d
	}
	return len(docs), nil
}

func (s *InMemoryDocumentStore) FilterDocuments(_ context.Context, filters map[string]string) ([]node.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []node.Document
	for _, d := range s.docs {
		if metaMatches(d.Meta, filters) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryDocumentStore) CountDocuments(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func metaMatches(meta, filters map[string]string) bool {
	for k, want := range filters {
		if meta[k] != want {
			return false
		}
	}
	return true
}

package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

const docKeyPrefix = "doc/"

func init() {
	node.Register("BadgerDocumentStore", NewBadgerDocumentStore, node.Schema{
		"path":      {Kind: node.KindString},
		"in_memory": {Kind: node.KindBool, Default: false},
	})
}

// BadgerDocumentStore persists documents in a Badger key-value database so
// an indexing pipeline's output survives the process and a later query
// pipeline can retrieve against it. Documents are stored JSON-encoded
// under a "doc/" key prefix.
type BadgerDocumentStore struct {
	db *badger.DB
}

// badgerLogger adapts slog to the badger.Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) { l.logger.Error(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}
func (l *badgerLogger) Infof(msg string, items ...any)  { l.logger.Debug(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Debugf(msg string, items ...any) { l.logger.Debug(fmt.Sprintf(msg, items...)) }

// NewBadgerDocumentStore is the BadgerDocumentStore factory. Params:
// path (directory, created if missing) or in_memory: true.
func NewBadgerDocumentStore(params node.Params) (node.Handler, error) {
	path := params.String("path", "")
	inMemory := params.Bool("in_memory", false)
	if path == "" && !inMemory {
		return nil, fmt.Errorf("BadgerDocumentStore: set path or in_memory: true")
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLogger{logger: slog.Default()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("BadgerDocumentStore: open %q: %w", path, err)
	}
	return &BadgerDocumentStore{db: db}, nil
}

// Invoke writes the documents of every input and reports the count.
func (s *BadgerDocumentStore) Invoke(ctx context.Context, inputs []*node.Message, _ node.Params) (*node.Message, error) {
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

func (s *BadgerDocumentStore) WriteDocuments(_ context.Context, docs []node.Document) (int, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, d := range docs {
			if d.ID == "" {
				return fmt.Errorf("document with empty ID")
			}
			raw, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("encode document %q: %w", d.ID, err)
			}
			if err := txn.Set([]byte(docKeyPrefix+d.ID), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *BadgerDocumentStore) FilterDocuments(_ context.Context, filters map[string]string) ([]node.Document, error) {
	var out []node.Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(raw []byte) error {
				var d node.Document
				if err := json.Unmarshal(raw, &d); err != nil {
					return fmt.Errorf("decode document at %q: %w", it.Item().Key(), err)
				}
				if metaMatches(d.Meta, filters) {
					out = append(out, d)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *BadgerDocumentStore) CountDocuments(ctx context.Context) (int, error) {
	docs, err := s.FilterDocuments(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Close releases the underlying database. The engine calls this at
// shutdown for shared instances and pool replicas alike.
func (s *BadgerDocumentStore) Close() error {
	return s.db.Close()
}

// Package node defines the contract every pipeline node implements and the
// process-wide registry that maps declared node types to factories.
package node

import "context"

// Document is one unit of indexed or retrieved content.
type Document struct {
	ID      string            `json:"id"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
	Score   float64           `json:"score,omitempty"`
}

// Answer is one candidate answer produced by a reader or generator.
type Answer struct {
	Answer     string  `json:"answer"`
	Score      float64 `json:"score"`
	Context    string  `json:"context,omitempty"`
	DocumentID string  `json:"document_id,omitempty"`
}

// Message is the payload passed along pipeline edges. Which fields are
// populated depends on the producing node: a Query source sets Query and
// Filters, a File source sets FilePaths, a retriever sets Documents, a
// reader sets Answers. Meta carries node-specific extras such as the
// write count reported by a document store sink.
type Message struct {
	Query     string            `json:"query,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	FilePaths []string          `json:"file_paths,omitempty"`
	Documents []Document        `json:"documents,omitempty"`
	Answers   []Answer          `json:"answers,omitempty"`
	Meta      map[string]any    `json:"meta,omitempty"`
}

// Handler executes one configured node. Inputs arrive in the order the
// node's producers were declared; most handlers consume only inputs[0],
// fan-in handlers fold all of them. params is the node's static
// configuration with any per-run overrides already layered on top.
//
// A handler must not mutate its inputs: the same Message value is shared
// with every other consumer of the producing node.
type Handler interface {
	Invoke(ctx context.Context, inputs []*Message, params Params) (*Message, error)
}

// Factory constructs a Handler from validated params. Each call must return
// an independent instance: replica pools call the factory once per replica
// so that instances never share runtime state such as connections.
type Factory func(params Params) (Handler, error)

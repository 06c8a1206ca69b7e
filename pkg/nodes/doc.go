// Package nodes provides the built-in node kinds: converters,
// preprocessors, document stores, retrievers, readers, generators and
// joiners. Import it blank to register them all with the default registry:
//
//	import _ "github.com/ravi-parthasarathy/conduit/pkg/nodes"
//
// Every kind registers from init() under the type name used in pipeline
// definitions (TextConverter, Preprocessor, InMemoryDocumentStore,
// BadgerDocumentStore, BM25Retriever, ExtractiveReader, AnswerGenerator,
// JoinDocuments).
package nodes

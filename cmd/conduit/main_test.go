package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awalterschulze/gographviz"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
	"github.com/ravi-parthasarathy/conduit/pkg/pipeline"
)

const testDefinition = `
components:
  - name: Converter
    type: TextConverter
  - name: Splitter
    type: Preprocessor
    params:
      split_length: 50
  - name: Store
    type: InMemoryDocumentStore
  - name: Retriever
    type: BM25Retriever
    params:
      document_store: Store
      top_k: 3
  - name: Reader
    type: ExtractiveReader

pipelines:
  - name: query
    nodes:
      - name: Retriever
        inputs: [Query]
      - name: Reader
        inputs: [Retriever]
  - name: indexing
    nodes:
      - name: Converter
        inputs: [File]
      - name: Splitter
        inputs: [Converter]
      - name: Store
        inputs: [Splitter]
`

func writeDefinition(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(path, []byte(testDefinition), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	return path
}

// ─── TestParseParamFlags ──────────────────────────────────────────────────────

func TestParseParamFlags(t *testing.T) {
	got, err := parseParamFlags([]string{
		"Retriever.top_k=10",
		"Reader.debug=true",
		"Splitter.ratio=0.5",
		"Reader.mode=fast",
	})
	if err != nil {
		t.Fatalf("parseParamFlags: %v", err)
	}
	if v := got["Retriever"]["top_k"]; v != 10 {
		t.Errorf("top_k = %v (%T), want int 10", v, v)
	}
	if v := got["Reader"]["debug"]; v != true {
		t.Errorf("debug = %v, want true", v)
	}
	if v := got["Splitter"]["ratio"]; v != 0.5 {
		t.Errorf("ratio = %v, want 0.5", v)
	}
	if v := got["Reader"]["mode"]; v != "fast" {
		t.Errorf("mode = %v, want fast", v)
	}
}

func TestParseParamFlags_Invalid(t *testing.T) {
	for _, bad := range []string{"top_k=10", "Retriever.top_k", "=5", "Node.=5"} {
		if _, err := parseParamFlags([]string{bad}); err == nil {
			t.Errorf("parseParamFlags(%q): expected error", bad)
		}
	}
}

func TestParseParamFlags_Empty(t *testing.T) {
	got, err := parseParamFlags(nil)
	if err != nil {
		t.Fatalf("parseParamFlags(nil): %v", err)
	}
	if got != nil {
		t.Errorf("expected nil map for no flags, got %v", got)
	}
}

// ─── TestBuildEngine ──────────────────────────────────────────────────────────

func TestBuildEngine_DefaultsToFirstPipeline(t *testing.T) {
	path := writeDefinition(t)

	eng, err := buildEngine(path, "", 0, 0)
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	defer eng.Close()
}

func TestBuildEngine_UnknownPipeline(t *testing.T) {
	path := writeDefinition(t)

	_, err := buildEngine(path, "nope", 0, 0)
	if err == nil {
		t.Fatal("expected error for unknown pipeline name")
	}
}

// ─── TestLintCommand ──────────────────────────────────────────────────────────

func TestLintCommand_ValidFile(t *testing.T) {
	path := writeDefinition(t)

	var out strings.Builder
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"lint", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("lint: %v", err)
	}
	if !strings.Contains(out.String(), `pipeline "query" is valid`) {
		t.Errorf("lint output missing query pipeline: %q", out.String())
	}
	if !strings.Contains(out.String(), `pipeline "indexing" is valid`) {
		t.Errorf("lint output missing indexing pipeline: %q", out.String())
	}
}

// ─── TestGraphCommand ─────────────────────────────────────────────────────────

func TestGraphCommand_TextFormat(t *testing.T) {
	path := writeDefinition(t)

	var out strings.Builder
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"graph", path, "--pipeline", "query"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("graph: %v", err)
	}
	for _, want := range []string{"Pipeline: query", "Retriever", "Reader", "Query"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("graph output missing %q:\n%s", want, out.String())
		}
	}
}

func TestGraphCommand_DOTFormat(t *testing.T) {
	path := writeDefinition(t)

	var out strings.Builder
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"graph", path, "--pipeline", "query", "--format", "dot"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("graph --format dot: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "digraph") {
		t.Errorf("DOT output missing digraph header:\n%s", got)
	}
	if !strings.Contains(got, `"Retriever"->"Reader"`) && !strings.Contains(got, `"Retriever" -> "Reader"`) {
		t.Errorf("DOT output missing Retriever -> Reader edge:\n%s", got)
	}
}

func TestGraphCommand_DOTOutputParsesBack(t *testing.T) {
	path := writeDefinition(t)

	var out strings.Builder
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"graph", path, "--pipeline", "indexing", "--format", "dot"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("graph --format dot: %v", err)
	}

	parsed, err := gographviz.Read([]byte(out.String()))
	if err != nil {
		t.Fatalf("generated DOT does not parse: %v\n%s", err, out.String())
	}
	// Source token plus the three pipeline nodes.
	if got := len(parsed.Nodes.Nodes); got != 4 {
		t.Errorf("parsed nodes = %d, want 4", got)
	}
}

// ─── TestRenderDOT ────────────────────────────────────────────────────────────

func TestRenderDOT_ReplicaLabel(t *testing.T) {
	def, err := pipeline.ParseDefinition([]byte(`
components:
  - name: Store
    type: InMemoryDocumentStore
  - name: Retriever
    type: BM25Retriever
    params:
      document_store: Store

pipelines:
  - name: query
    type: DistributedPipeline
    nodes:
      - name: Retriever
        inputs: [Query]
        replicas: 3
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g, err := pipeline.Build(def, "query", node.Default)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dot, err := renderDOT(g)
	if err != nil {
		t.Fatalf("renderDOT: %v", err)
	}
	if !strings.Contains(dot, "x3") {
		t.Errorf("DOT output missing replica count:\n%s", dot)
	}
}

// ─── TestTruncate ─────────────────────────────────────────────────────────────

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short, 10) = %q", got)
	}
	if got := truncate("abcdefghij", 4); got != "abcd…" {
		t.Errorf("truncate = %q, want abcd…", got)
	}
}

package nodes

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/ravi-parthasarathy/conduit/pkg/llm"
	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

const defaultGeneratorPrompt = `Answer the question using only the documents below.
If the documents do not contain the answer, say you don't know.

Documents:
{{range .Documents}}---
{{.Content}}
{{end}}---

Question: {{.Query}}
Answer:`

// newLLMClient is swapped for a stub in tests.
var newLLMClient = llm.NewClient

func init() {
	node.Register("AnswerGenerator", NewAnswerGenerator, node.Schema{
		"model":      {Kind: node.KindString, Required: true},
		"prompt":     {Kind: node.KindString},
		"max_tokens": {Kind: node.KindInt, Default: 1024},
	})
}

// AnswerGenerator produces a generated answer from the query and its input
// documents through an LLM provider. The model param uses the
// "provider:model-name" form; prompt is a Go template over .Query and
// .Documents. Each factory call creates its own client, so replicas get
// independent connections.
type AnswerGenerator struct {
	client llm.Client
	tmpl   *template.Template
}

// NewAnswerGenerator is the AnswerGenerator factory.
func NewAnswerGenerator(params node.Params) (node.Handler, error) {
	client, err := newLLMClient(params.String("model", ""))
	if err != nil {
		return nil, fmt.Errorf("AnswerGenerator: %w", err)
	}
	promptSrc := params.String("prompt", defaultGeneratorPrompt)
	tmpl, err := template.New("prompt").Parse(promptSrc)
	if err != nil {
		return nil, fmt.Errorf("AnswerGenerator: prompt template: %w", err)
	}
	return &AnswerGenerator{client: client, tmpl: tmpl}, nil
}

func (g *AnswerGenerator) Invoke(ctx context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	in := inputs[0]

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, map[string]any{
		"Query":     in.Query,
		"Documents": in.Documents,
	}); err != nil {
		return nil, fmt.Errorf("generate: render prompt: %w", err)
	}

	resp, err := g.client.Complete(ctx, llm.GenerateRequest{
		Prompt:    buf.String(),
		MaxTokens: params.Int("max_tokens", 1024),
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return &node.Message{
		Query: in.Query,
		Answers: []node.Answer{{
			Answer: strings.TrimSpace(resp.Text),
			Score:  1,
		}},
		Meta: map[string]any{
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		},
	}, nil
}

package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ─── TestParseModelID ─────────────────────────────────────────────────────────

func TestParseModelID(t *testing.T) {
	tests := []struct {
		id            string
		wantProvider  string
		wantModelName string
		wantErr       bool
	}{
		{"anthropic:claude-sonnet-4-5", "anthropic", "claude-sonnet-4-5", false},
		{"openai:gpt-4o", "openai", "gpt-4o", false},
		{"gemini:gemini-2.0-flash", "gemini", "gemini-2.0-flash", false},
		{"bare-model-name", "", "", true},
		{":model", "", "", true},
		{"provider:", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		provider, modelName, err := ParseModelID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseModelID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			continue
		}
		if provider != tt.wantProvider || modelName != tt.wantModelName {
			t.Errorf("ParseModelID(%q) = %q, %q", tt.id, provider, modelName)
		}
	}
}

// ─── TestNewClient ────────────────────────────────────────────────────────────

type fakeClient struct{ model string }

func (f *fakeClient) Complete(context.Context, GenerateRequest) (GenerateResponse, error) {
	return GenerateResponse{Text: "from " + f.model}, nil
}

func TestNewClient_UsesRegisteredProvider(t *testing.T) {
	RegisterProvider("faketest", func(modelName string) (Client, error) {
		return &fakeClient{model: modelName}, nil
	})

	c, err := NewClient("faketest:m1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := c.Complete(context.Background(), GenerateRequest{Prompt: "x"})
	if err != nil || resp.Text != "from m1" {
		t.Errorf("Complete = %+v, %v", resp, err)
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient("nosuchprovider:m")
	if err == nil || !strings.Contains(err.Error(), "no provider registered") {
		t.Fatalf("expected unknown-provider error, got %v", err)
	}
}

// ─── TestRetryable ────────────────────────────────────────────────────────────

func TestRetryable(t *testing.T) {
	rate := &RateLimitError{LLMError{Code: 429, Message: "slow down"}}
	server := &ServerError{LLMError{Code: 500, Message: "oops"}}
	auth := &AuthError{LLMError{Code: 401, Message: "nope"}}
	ctxLen := &ContextLengthError{LLMError{Code: 400, Message: "too long"}}

	if !Retryable(rate) || !Retryable(server) {
		t.Error("rate limit and server errors must be retryable")
	}
	if Retryable(auth) || Retryable(ctxLen) || Retryable(errors.New("plain")) {
		t.Error("auth, context length and plain errors must not be retryable")
	}
	// Wrapped errors stay classifiable.
	if !Retryable(fmtWrap(rate)) {
		t.Error("wrapped rate limit error must stay retryable")
	}
}

func fmtWrap(err error) error { return &LLMError{Code: 0, Message: "wrapped", Cause: err} }

// ─── TestWithRetry ────────────────────────────────────────────────────────────

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 5, func() error {
		calls++
		if calls < 2 {
			return &ServerError{LLMError{Code: 503, Message: "busy"}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWithRetry_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 5, func() error {
		calls++
		return &AuthError{LLMError{Code: 401, Message: "bad key"}}
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want immediate failure", err, calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 2, func() error {
		calls++
		return &RateLimitError{LLMError{Code: 429, Message: "limited"}}
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Errorf("final error must wrap the last attempt's error: %v", err)
	}
	if !strings.Contains(err.Error(), "max retries") {
		t.Errorf("err = %v", err)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, 5, func() error {
		return &ServerError{LLMError{Code: 500, Message: "x"}}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

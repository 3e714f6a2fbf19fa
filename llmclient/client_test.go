package llmclient

import (
	"context"
	"testing"
)

// mockAdapter is a test double for ProviderAdapter.
type mockAdapter struct {
	name     string
	response *Response
	err      error
	calls    int
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func newMockAdapter(name, text string) *mockAdapter {
	return &mockAdapter{
		name: name,
		response: &Response{
			ID:           "test_resp",
			Model:        "test-model",
			Provider:     name,
			Text:         text,
			FinishReason: FinishReason{Reason: "stop"},
			Usage:        Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		},
	}
}

func TestClientComplete(t *testing.T) {
	mock := newMockAdapter("test-provider", "Hello!")
	client := NewClient(
		WithProvider("test-provider", mock),
		WithDefaultProvider("test-provider"),
	)

	resp, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Hello!" {
		t.Errorf("expected text %q, got %q", "Hello!", resp.Text)
	}
	if resp.Provider != "test-provider" {
		t.Errorf("expected provider %q, got %q", "test-provider", resp.Provider)
	}
}

func TestClientProviderRouting(t *testing.T) {
	openai := newMockAdapter("openai", "OpenAI response")
	anthropic := newMockAdapter("anthropic", "Anthropic response")

	client := NewClient(
		WithProvider("openai", openai),
		WithProvider("anthropic", anthropic),
		WithDefaultProvider("openai"),
	)

	// Explicit provider.
	resp, err := client.Complete(context.Background(), Request{
		Model:    "claude-opus-4-6",
		Messages: []Message{UserMessage("Hi")},
		Provider: "anthropic",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Anthropic response" {
		t.Errorf("expected Anthropic response, got %q", resp.Text)
	}

	// Default provider.
	resp, err = client.Complete(context.Background(), Request{
		Model:    "gpt-5.2",
		Messages: []Message{UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "OpenAI response" {
		t.Errorf("expected OpenAI response, got %q", resp.Text)
	}
}

func TestClientCatalogInference(t *testing.T) {
	anthropic := newMockAdapter("anthropic", "from catalog")
	client := NewClient(WithProvider("anthropic", anthropic))
	client.defaultProvider = "" // force catalog lookup

	resp, err := client.Complete(context.Background(), Request{
		Model:    "claude-sonnet-4-5",
		Messages: []Message{UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "from catalog" {
		t.Errorf("expected catalog-routed response, got %q", resp.Text)
	}
}

func TestClientNoProvider(t *testing.T) {
	client := NewClient()
	_, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{UserMessage("Hi")},
	})
	if err == nil {
		t.Fatal("expected error for no provider")
	}
	if _, ok := err.(*ConfigurationError); !ok {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

// flakyAdapter fails a fixed number of times before succeeding.
type flakyAdapter struct {
	name     string
	failures int
	err      error
	calls    int
}

func (f *flakyAdapter) Name() string { return f.name }

func (f *flakyAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Response{ID: "ok", Provider: f.name, Text: "recovered"}, nil
}

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         0.001,
		MaxDelay:          0.01,
		BackoffMultiplier: 1.0,
	}
}

func TestClientRetriesRetryableError(t *testing.T) {
	flaky := &flakyAdapter{
		name:     "flaky",
		failures: 1,
		err: &ServerError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "transient 500"},
			Provider:    "flaky", StatusCode: 500, Retryable: true,
		}},
	}
	client := NewClient(
		WithProvider("flaky", flaky),
		WithRetryPolicy(fastRetryPolicy()),
	)

	resp, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("retryable failure should have been retried: %v", err)
	}
	if resp.Text != "recovered" {
		t.Errorf("expected recovered response, got %q", resp.Text)
	}
	if flaky.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", flaky.calls)
	}
}

func TestClientDoesNotRetryNonRetryable(t *testing.T) {
	flaky := &flakyAdapter{
		name:     "flaky",
		failures: 10,
		err: &AuthenticationError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "bad key"},
			Provider:    "flaky", StatusCode: 401,
		}},
	}
	client := NewClient(
		WithProvider("flaky", flaky),
		WithRetryPolicy(fastRetryPolicy()),
	)

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{UserMessage("Hi")},
	})
	if err == nil {
		t.Fatal("expected the authentication error to surface")
	}
	if flaky.calls != 1 {
		t.Errorf("non-retryable errors must not be retried, got %d calls", flaky.calls)
	}
}

func TestClientRetryBudgetExhausts(t *testing.T) {
	flaky := &flakyAdapter{
		name:     "flaky",
		failures: 10,
		err: &ServerError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "still down"},
			Provider:    "flaky", StatusCode: 500, Retryable: true,
		}},
	}
	client := NewClient(
		WithProvider("flaky", flaky),
		WithRetryPolicy(fastRetryPolicy()),
	)

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{UserMessage("Hi")},
	})
	if err == nil {
		t.Fatal("expected the error to surface once retries ran out")
	}
	// Initial call plus MaxRetries.
	if flaky.calls != 3 {
		t.Errorf("expected 3 provider calls, got %d", flaky.calls)
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	mock := newMockAdapter("p", "ok")
	var order []string

	mw := func(tag string) Middleware {
		return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
			order = append(order, tag)
			return next(ctx, req)
		}
	}

	client := NewClient(
		WithProvider("p", mock),
		WithMiddleware(mw("first"), mw("second")),
	)

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("middleware ran in wrong order: %v", order)
	}
}

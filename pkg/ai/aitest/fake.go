// Package aitest provides a scriptable ai.Client for tests.
package aitest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/givance/webserver-sub009/pkg/ai"
)

var ErrNotScripted = errors.New("aitest: no response scripted")

// FakeClient implements ai.Client and ai.Embedder. Responses are produced by
// the Func fields; calls are counted and prompts recorded. The Funcs may run
// concurrently and must be safe for that.
type FakeClient struct {
	mu sync.Mutex

	// CompletionFunc answers GenerateCompletion.
	CompletionFunc func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)
	// FormatFunc answers GenerateCompletionWithFormat with a JSON document
	// that is decoded into out by the fake.
	FormatFunc func(ctx context.Context, name string, prompt string) (string, error)
	// EmbedFunc answers GenerateEmbedding.
	EmbedFunc func(ctx context.Context, input string) ([]float32, error)

	CompletionCalls int
	FormatCalls     int
	EmbedCalls      int
	Prompts         []string
	LastOptions     ai.GenerateOptions
}

func (f *FakeClient) record(prompt string, opts ai.GenerateOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	f.LastOptions = opts
}

func (f *FakeClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{}, opts...)
	f.mu.Lock()
	f.CompletionCalls++
	f.mu.Unlock()
	f.record(prompt, options)

	if f.CompletionFunc == nil {
		return "", ErrNotScripted
	}
	return f.CompletionFunc(ctx, prompt, options)
}

func (f *FakeClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(ai.GenerateOptions{}, opts...)
	f.mu.Lock()
	f.FormatCalls++
	f.mu.Unlock()
	f.record(prompt, options)

	if f.FormatFunc == nil {
		return ErrNotScripted
	}
	raw, err := f.FormatFunc(ctx, name, prompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (f *FakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	f.mu.Lock()
	f.EmbedCalls++
	f.mu.Unlock()

	if f.EmbedFunc == nil {
		return nil, ErrNotScripted
	}
	return f.EmbedFunc(ctx, string(input))
}

func (f *FakeClient) ResetMetrics() {}

func (f *FakeClient) GetMetrics() ai.ModelMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ai.ModelMetrics{Requests: f.CompletionCalls + f.FormatCalls + f.EmbedCalls}
}

// Calls returns the number of LLM generation calls made so far.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CompletionCalls + f.FormatCalls
}

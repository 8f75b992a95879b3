// Package genai defines the narrow contracts for the external
// text-generation collaborators and an HTTP client implementing them.
//
// Every call site in the pipeline depends on these two capabilities only;
// provider response shapes never leak past this package.
package genai

import (
	"context"
	"fmt"
)

// Generator produces free text from an instruction set and structured input.
// Implementations must return a *GenerationError on provider failure; they
// never panic and never embed provider errors in the returned text.
type Generator interface {
	Generate(ctx context.Context, instructions, input string) (string, error)
}

// Searcher performs a web search described by a natural-language prompt and
// returns free text containing zero or more URLs with surrounding
// description. Returned URLs carry no liveness guarantee; callers must
// validate them independently.
type Searcher interface {
	Search(ctx context.Context, prompt string) (string, error)
}

// GenerationError wraps any provider-side failure (transport, HTTP status,
// malformed response).
type GenerationError struct {
	Op  string // "generate" or "search"
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("genai: %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, instructions, input string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, instructions, input string) (string, error) {
	return f(ctx, instructions, input)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, prompt string) (string, error)

func (f SearcherFunc) Search(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

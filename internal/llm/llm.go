// Package llm defines the text-completion contract used for narrative insights.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimited marks a completion rejected because the caller exceeded its quota.
var ErrRateLimited = errors.New("llm: rate limited")

// Completer turns a prompt into free text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

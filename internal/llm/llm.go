// Package llm is the chat-completion collaborator used by the extractor.
// A request carries one prompt and a strict JSON schema; the response is
// the raw JSON text the model produced.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Request is one structured completion call.
type Request struct {
	Prompt     string
	SchemaName string
	Schema     json.Marshaler
}

// Client performs structured completions.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

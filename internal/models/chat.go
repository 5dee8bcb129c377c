package models

import (
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/packages/param"
)

// CustomChatRequest is the body of a chat request against a custom endpoint.
type CustomChatRequest struct {
	Endpoint string `json:"endpoint"`
	// Key is the client's cached expiry of the user-provided credential (RFC 3339).
	Key         string                                   `json:"key,omitzero"`
	Model       string                                   `json:"model"`
	Messages    []openai.ChatCompletionMessageParamUnion `json:"messages"`
	Stream      bool                                     `json:"stream,omitzero"`
	Temperature param.Opt[float64]                       `json:"temperature,omitzero"`
	TopP        param.Opt[float64]                       `json:"top_p,omitzero"`
	MaxTokens   param.Opt[int64]                         `json:"max_tokens,omitzero"`
}

// ModelOptions converts the sampling fields into caller overrides.
func (r *CustomChatRequest) ModelOptions() ModelOptions {
	opts := ModelOptions{Model: r.Model}
	if r.Temperature.Valid() {
		v := r.Temperature.Value
		opts.Temperature = &v
	}
	if r.TopP.Valid() {
		v := r.TopP.Value
		opts.TopP = &v
	}
	if r.MaxTokens.Valid() {
		v := r.MaxTokens.Value
		opts.MaxTokens = &v
	}
	return opts
}

// ModelListResponse is returned by the model listing endpoint.
type ModelListResponse struct {
	Endpoint string   `json:"endpoint"`
	Models   []string `json:"models"`
}

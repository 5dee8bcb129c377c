package models

// TokenRate describes pricing (USD per million tokens) and context size for a model.
type TokenRate struct {
	Prompt     float64 `yaml:"prompt" json:"prompt"`
	Completion float64 `yaml:"completion" json:"completion"`
	Context    int64   `yaml:"context,omitempty" json:"context,omitzero"`
}

// TokenConfig maps a model ID to its token metadata.
type TokenConfig map[string]TokenRate

// FetchTokenConfigEndpoints lists the endpoints whose token metadata can be
// fetched from the provider's model listing when no static config is present.
var FetchTokenConfigEndpoints = []string{"openrouter"}

package models

// ModelOptions are the per-call sampling options forwarded to the provider.
type ModelOptions struct {
	Model       string   `json:"model,omitzero"`
	Temperature *float64 `json:"temperature,omitzero"`
	TopP        *float64 `json:"top_p,omitzero"`
	MaxTokens   *int64   `json:"max_tokens,omitzero"`
	User        string   `json:"user,omitzero"`
}

// ClientOptions is the assembled configuration a chat client is built from.
// Layers are merged endpoint config first, then process-wide options, then
// caller overrides.
type ClientOptions struct {
	ReverseProxyURL     string            `json:"reverse_proxy_url,omitzero"`
	Proxy               string            `json:"proxy,omitzero"`
	Headers             map[string]string `json:"headers,omitzero"`
	AddParams           map[string]any    `json:"add_params,omitzero"`
	DropParams          []string          `json:"drop_params,omitzero"`
	TitleConvo          bool              `json:"title_convo,omitzero"`
	TitleModel          string            `json:"title_model,omitzero"`
	ForcePrompt         bool              `json:"force_prompt,omitzero"`
	SummaryModel        string            `json:"summary_model,omitzero"`
	ModelDisplayLabel   string            `json:"model_display_label,omitzero"`
	TitleMethod         string            `json:"title_method,omitzero"`
	ContextStrategy     string            `json:"context_strategy,omitzero"`
	DirectEndpoint      bool              `json:"direct_endpoint,omitzero"`
	TitleMessageRole    string            `json:"title_message_role,omitzero"`
	StreamRate          *int              `json:"stream_rate,omitzero"`
	EndpointTokenConfig TokenConfig       `json:"endpoint_token_config,omitzero"`
	ModelOptions        ModelOptions      `json:"model_options,omitzero"`
}

// GlobalOptions are process-wide settings handed to the resolver explicitly.
type GlobalOptions struct {
	// StreamRate overrides every endpoint's stream rate when set.
	StreamRate *int
	// Proxy is the outbound HTTP proxy URL for provider calls.
	Proxy string
}

package models

// AuthTypeUserProvided marks a credential that is read from per-user storage
// instead of the static config or the environment.
const AuthTypeUserProvided = "user_provided"

// DefaultTitleMethod is applied when an endpoint does not set title_method.
const DefaultTitleMethod = "completion"

// ContextStrategySummarize is set on client options when an endpoint enables summarize.
const ContextStrategySummarize = "summarize"

// CustomEndpointConfig holds the static configuration of a user-configured,
// OpenAI-compatible endpoint. APIKey, BaseURL and Headers are templates that are
// expanded per request.
type CustomEndpointConfig struct {
	Name              string            `yaml:"name" json:"name"`
	APIKey            string            `yaml:"api_key" json:"api_key,omitzero"`
	BaseURL           string            `yaml:"base_url" json:"base_url,omitzero"`
	Headers           map[string]string `yaml:"headers,omitempty" json:"headers,omitzero"`
	Models            EndpointModels    `yaml:"models" json:"models"`
	TokenConfig       TokenConfig       `yaml:"token_config,omitempty" json:"token_config,omitzero"`
	AddParams         map[string]any    `yaml:"add_params,omitempty" json:"add_params,omitzero"`
	DropParams        []string          `yaml:"drop_params,omitempty" json:"drop_params,omitzero"`
	TitleConvo        bool              `yaml:"title_convo,omitempty" json:"title_convo,omitzero"`
	TitleModel        string            `yaml:"title_model,omitempty" json:"title_model,omitzero"`
	ForcePrompt       bool              `yaml:"force_prompt,omitempty" json:"force_prompt,omitzero"`
	SummaryModel      string            `yaml:"summary_model,omitempty" json:"summary_model,omitzero"`
	ModelDisplayLabel string            `yaml:"model_display_label,omitempty" json:"model_display_label,omitzero"`
	TitleMethod       string            `yaml:"title_method,omitempty" json:"title_method,omitzero"`
	Summarize         bool              `yaml:"summarize,omitempty" json:"summarize,omitzero"`
	DirectEndpoint    bool              `yaml:"direct_endpoint,omitempty" json:"direct_endpoint,omitzero"`
	TitleMessageRole  string            `yaml:"title_message_role,omitempty" json:"title_message_role,omitzero"`
	StreamRate        *int              `yaml:"stream_rate,omitempty" json:"stream_rate,omitzero"` // Milliseconds between streamed chunks
}

// EndpointModels describes which models an endpoint offers and whether the
// list (and token pricing) should be fetched from the provider.
type EndpointModels struct {
	Default []string `yaml:"default,omitempty" json:"default,omitzero"`
	Fetch   bool     `yaml:"fetch,omitempty" json:"fetch,omitzero"`
	// UserIDQuery adds the requesting user's ID to the model listing request.
	UserIDQuery bool `yaml:"user_id_query,omitempty" json:"user_id_query,omitzero"`
}

// HasStaticTokenConfig reports whether token metadata is supplied by the config file.
func (e *CustomEndpointConfig) HasStaticTokenConfig() bool {
	return len(e.TokenConfig) > 0
}

// AllEndpointsConfig holds options applied to every endpoint, overriding the
// per-endpoint values.
type AllEndpointsConfig struct {
	StreamRate *int `yaml:"stream_rate,omitempty" json:"stream_rate,omitzero"`
}

// EndpointsConfig holds all endpoint configurations
type EndpointsConfig struct {
	Custom []CustomEndpointConfig `yaml:"custom"`
	All    *AllEndpointsConfig    `yaml:"all,omitempty"`
}

// FindCustom returns the custom endpoint whose name matches exactly.
func (e *EndpointsConfig) FindCustom(name string) (*CustomEndpointConfig, bool) {
	for i := range e.Custom {
		if e.Custom[i].Name == name {
			return &e.Custom[i], true
		}
	}
	return nil, false
}

// IsUserProvided reports whether a resolved credential value is the user_provided sentinel.
func IsUserProvided(value string) bool {
	return value == AuthTypeUserProvided
}

package models

const (
	// DefaultIdentityHeader is the header whose value receives the requesting user's email.
	DefaultIdentityHeader = "x-portkey-metadata"
	// DefaultIdentityPlaceholder is replaced with the user's email inside the identity header.
	DefaultIdentityPlaceholder = "${userIdQuery}"
)

// IdentityHeaderConfig configures identity substitution for one header.
type IdentityHeaderConfig struct {
	Header      string `json:"header,omitzero" yaml:"header"`
	Placeholder string `json:"placeholder,omitzero" yaml:"placeholder"`
	// Fallback, when non-nil, replaces the whole header value instead of
	// failing the request if the user cannot be resolved.
	Fallback *string `json:"fallback,omitzero" yaml:"fallback,omitempty"`
}

// HeadersConfig configures header template resolution.
type HeadersConfig struct {
	Identity *IdentityHeaderConfig `json:"identity,omitzero" yaml:"identity,omitempty"`
}

package models

// AuthConfig configures bearer-token authentication of API callers.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret,omitzero" yaml:"jwt_secret"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `json:"issuer,omitzero" yaml:"issuer,omitempty"`
}

// SecurityConfig holds the key material used to seal stored user credentials.
type SecurityConfig struct {
	// CredsKey is a hex-encoded 32-byte key.
	CredsKey string `json:"creds_key,omitzero" yaml:"creds_key"`
}

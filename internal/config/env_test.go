package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEnvVariable(t *testing.T) {
	t.Setenv("FOO_KEY", "sk-foo")
	t.Setenv("BAR", "baz")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "literal", value: "sk-literal", want: "sk-literal"},
		{name: "whole value", value: "${FOO_KEY}", want: "sk-foo"},
		{name: "whole value padded", value: "  ${BAR} ", want: "baz"},
		{name: "inline", value: "https://${BAR}.example.com/v1", want: "https://baz.example.com/v1"},
		{name: "unset stays raw", value: "${UNSET_VAR_FOR_TEST}", want: "${UNSET_VAR_FOR_TEST}"},
		{name: "empty stays raw", value: "${EMPTY_VAR}", want: "${EMPTY_VAR}"},
		{name: "mixed", value: "${BAR}-${UNSET_VAR_FOR_TEST}", want: "baz-${UNSET_VAR_FOR_TEST}"},
		{name: "sentinel untouched", value: "user_provided", want: "user_provided"},
		{name: "empty", value: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEnvVariable(tt.value))
		})
	}
}

func TestHasUnresolvedPlaceholder(t *testing.T) {
	assert.True(t, HasUnresolvedPlaceholder("${FOO}"))
	assert.True(t, HasUnresolvedPlaceholder("prefix-${FOO}"))
	assert.False(t, HasUnresolvedPlaceholder("sk-123"))
	assert.False(t, HasUnresolvedPlaceholder("$FOO"))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")

	assert.Equal(t, "redis://cache.internal:6379", substituteEnvVars("redis://${REDIS_HOST}:6379"))
	assert.Equal(t, "8080", substituteEnvVars("${UNSET_PORT_FOR_TEST:-8080}"))
	assert.Equal(t, "", substituteEnvVars("${UNSET_PORT_FOR_TEST}"))
}

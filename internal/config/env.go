package config

import (
	"os"
	"regexp"
	"strings"
)

var (
	// infraEnvPattern matches ${VAR_NAME} or ${VAR_NAME:-default_value}
	infraEnvPattern = regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)
	// placeholderPattern matches any ${...} placeholder inside a template
	placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	// wholeValuePattern matches a template that is a single placeholder
	wholeValuePattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)
)

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	return infraEnvPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := infraEnvPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// ExtractEnvVariable expands ${VAR} placeholders in a template from the
// environment. Placeholders whose variable is unset or empty are left intact so
// callers can detect them with HasUnresolvedPlaceholder.
func ExtractEnvVariable(value string) string {
	if value == "" {
		return value
	}

	trimmed := strings.TrimSpace(value)
	if m := wholeValuePattern.FindStringSubmatch(trimmed); m != nil {
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return value
	}

	return placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return match
	})
}

// HasUnresolvedPlaceholder reports whether value still contains a ${...} placeholder.
func HasUnresolvedPlaceholder(value string) bool {
	return placeholderPattern.MatchString(value)
}

package config

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// GetEnvObject returns a cty object containing all environment
// variables as attributes, suitable for an HCL evaluation context.
func GetEnvObject() cty.Value {
	envMap := make(map[string]cty.Value)
	for _, envVar := range os.Environ() {
		key, value, ok := strings.Cut(envVar, "=")
		if !ok {
			continue
		}
		envMap[sanitizeEnvVarName(key)] = cty.StringVal(value)
	}
	if len(envMap) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(envMap)
}

// sanitizeEnvVarName maps an environment variable name to a valid HCL
// attribute name: first character a letter or underscore, the rest
// letters, digits, underscores or hyphens.
func sanitizeEnvVarName(name string) string {
	if name == "" {
		return "_"
	}

	var result strings.Builder
	first := rune(name[0])
	if isValidFirstChar(first) {
		result.WriteRune(first)
	} else {
		result.WriteRune('_')
	}
	for _, char := range name[1:] {
		if isValidChar(char) {
			result.WriteRune(char)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}

func isValidFirstChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isValidChar(r rune) bool {
	return isValidFirstChar(r) || (r >= '0' && r <= '9') || r == '-'
}

package convert

import (
	"fmt"
	"os"
	"strings"
)

const envPrefix = "!!env:"

// ExpandEnvSecret resolves a "!!env:NAME" marker to the named environment
// variable's value at structuring time, for embedding secrets in config
// files and repository records without storing them in plaintext (spec
// §4.9, §6). A value without the marker is returned unchanged.
func ExpandEnvSecret(value string) (string, error) {
	if !strings.HasPrefix(value, envPrefix) {
		return value, nil
	}
	name := strings.TrimPrefix(value, envPrefix)
	if name == "" {
		return "", fmt.Errorf("expanding env secret: empty variable name in %q", value)
	}
	resolved, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("expanding env secret: environment variable %q is not set", name)
	}
	return resolved, nil
}

// IsEnvSecret reports whether value is a "!!env:NAME" marker.
func IsEnvSecret(value string) bool {
	return strings.HasPrefix(value, envPrefix)
}

// Package env reads process settings that must be known before config.Load,
// such as the log format used while config itself is being parsed.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces storefront settings in the environment.
const Prefix = "STOREFRONT_"

// Get returns the first non-blank value among STOREFRONT_<key> and <key>,
// or fallback when neither is set.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}

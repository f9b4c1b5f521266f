package env

import (
	"os"
	"strings"
)

// Prefix namespaces the storefront's own process settings.
const Prefix = "STOREFRONT_"

// Get returns STOREFRONT_<key>, then the bare key, then fallback. Blank
// values count as unset.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}

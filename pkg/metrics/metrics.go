// Package metrics defines the Prometheus collectors the storefront binaries
// register. Every type is nil-safe and a nil Registerer yields no-op
// collectors, so tests and tools can skip wiring them.
package metrics

const namespace = "storefront"

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

package instance

import (
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

const fallbackID = "worker-0"

// ID identifies this worker process in logs. WORKER_ID wins, then the
// hostname (the pod name under Kubernetes).
func ID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}

package instance

import (
	"os"
	"strings"
)

const fallbackID = "worker-0"

// ID identifies the running process for lock ownership and log fields.
// STOREFRONT_INSTANCE_ID wins, then WORKER_ID, then the hostname.
func ID() string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "WORKER_ID"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}

package instance

import "os"

// GetID identifies this worker replica in logs: CHECKOUT_WORKER_ID, then the
// hostname, then a fixed fallback.
func GetID() string {
	if id := os.Getenv("CHECKOUT_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}

// Package env reads the deployment identity of the process.
package env

import (
	"os"
)

// PodName is the kubernetes pod name, or the hostname outside a cluster.
func PodName() string {
	if name := os.Getenv("PODNAME"); name != "" {
		return name
	}
	host, _ := os.Hostname()
	return host
}

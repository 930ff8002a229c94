package keys

import (
	"strings"
)

const (
	// PfxHealthCheck is used for prefixing health check redis key
	PfxHealthCheck = "healthcheck"
	// PfxVaultEvents is used for prefixing the pub/sub channel of vault events
	PfxVaultEvents = "vaultEvents"
	// PfxEventList is used for prefixing cached event listings
	PfxEventList = "eventList"
)

// CustomKey is used to join the customized key by componets with specified delimiter
func CustomKey(delimiter string, components ...string) string {
	return strings.Join(components, delimiter)
}

// RedisKey is used to join the redis key by componets
func RedisKey(components ...string) string {
	return CustomKey(":", components...)
}

// GetPrefix returns the first component of a redis key, used as a metrics tag
func GetPrefix(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i]
	}
	return key
}

// EventChannel is the redis channel vault events of one vault are published on
func EventChannel(vault string) string {
	return RedisKey(PfxVaultEvents, strings.ToLower(vault))
}

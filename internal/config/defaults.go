package config

import (
	"time"

	"gauth/pkg/credential"
)

const (
	// DefaultListenAddr is where the loopback host listens.
	DefaultListenAddr = "127.0.0.1:8085"

	// DefaultCallbackPath is the path the loopback host serves.
	DefaultCallbackPath = "/callback"

	// DefaultHostTimeout bounds how long login waits for the user.
	DefaultHostTimeout = 5 * time.Minute
)

// GetDefaultConfig returns the configuration used when nothing is set.
func GetDefaultConfig() Config {
	return Config{
		Scopes:   []string{"analytics.readonly"},
		LogLevel: "info",
		Storage: StorageConfig{
			Backend:       BackendFile,
			Namespace:     credential.DefaultNamespace,
			KubeNamespace: "default",
		},
		Host: HostConfig{
			Mode:         HostModeBrowser,
			ListenAddr:   DefaultListenAddr,
			CallbackPath: DefaultCallbackPath,
			Timeout:      DefaultHostTimeout,
		},
	}
}

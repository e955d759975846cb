package config

import "time"

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendFile       = "file"
	BackendSQLite     = "sqlite"
	BackendKubernetes = "kubernetes"
)

// UI host modes.
const (
	HostModeBrowser  = "browser"
	HostModeOOB      = "oob"
	HostModeLoopback = "loopback"
)

// Config is the top-level gauth configuration.
type Config struct {
	ClientID     string `yaml:"client_id" env:"GAUTH_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GAUTH_CLIENT_SECRET"`

	// AppID derives the out-of-band callback endpoint.
	AppID string `yaml:"app_id" env:"GAUTH_APP_ID"`

	// RedirectURI overrides the derived callback endpoint.
	RedirectURI string `yaml:"redirect_uri,omitempty" env:"GAUTH_REDIRECT_URI"`

	Scopes []string `yaml:"scopes" env:"GAUTH_SCOPES" envSeparator:","`

	// DisableStateCheck omits the anti-forgery state parameter.
	DisableStateCheck bool `yaml:"disable_state_check" env:"GAUTH_DISABLE_STATE_CHECK"`

	LogLevel string `yaml:"log_level" env:"GAUTH_LOG_LEVEL"`

	Endpoint EndpointConfig `yaml:"endpoint,omitempty"`
	Storage  StorageConfig  `yaml:"storage"`
	Host     HostConfig     `yaml:"host"`
}

// EndpointConfig overrides the provider endpoints.
type EndpointConfig struct {
	AuthURL  string `yaml:"auth_url,omitempty" env:"GAUTH_AUTH_URL"`
	TokenURL string `yaml:"token_url,omitempty" env:"GAUTH_TOKEN_URL"`
}

// StorageConfig selects and configures the credential backend.
type StorageConfig struct {
	Backend   string `yaml:"backend" env:"GAUTH_STORAGE_BACKEND"`
	Namespace string `yaml:"namespace" env:"GAUTH_STORAGE_NAMESPACE"`

	// Dir is the root of the file backend.
	Dir string `yaml:"dir,omitempty" env:"GAUTH_STORAGE_DIR"`

	// Path is the database file of the sqlite backend.
	Path string `yaml:"path,omitempty" env:"GAUTH_STORAGE_PATH"`

	// Passphrase seals records of the file and sqlite backends.
	Passphrase string `yaml:"passphrase,omitempty" env:"GAUTH_STORAGE_PASSPHRASE"`

	// KubeNamespace holds the Secrets of the kubernetes backend.
	KubeNamespace string `yaml:"kube_namespace,omitempty" env:"GAUTH_STORAGE_KUBE_NAMESPACE"`
}

// HostConfig configures how the authorize URL is presented.
type HostConfig struct {
	Mode         string        `yaml:"mode" env:"GAUTH_HOST_MODE"`
	ListenAddr   string        `yaml:"listen_addr" env:"GAUTH_HOST_LISTEN_ADDR"`
	CallbackPath string        `yaml:"callback_path" env:"GAUTH_HOST_CALLBACK_PATH"`
	Timeout      time.Duration `yaml:"timeout" env:"GAUTH_HOST_TIMEOUT"`
}

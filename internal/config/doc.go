// Package config loads the gauth configuration.
//
// Configuration is resolved in three layers, later layers winning:
//
//  1. built-in defaults (GetDefaultConfig)
//  2. config.yaml in the configuration directory (default ~/.config/gauth)
//  3. GAUTH_* environment variables
//
// The result is validated before it is returned.
//
// # Example config.yaml
//
//	client_id: 1234.apps.googleusercontent.com
//	client_secret: s3cret
//	app_id: com.example.reader
//	scopes:
//	  - analytics.readonly
//	storage:
//	  backend: sqlite
//	  path: ~/.config/gauth/credentials.db
//	host:
//	  mode: loopback
//	  listen_addr: 127.0.0.1:8085
//
// # Environment Variables
//
// Every field has a GAUTH_ variable, for example GAUTH_CLIENT_SECRET,
// GAUTH_STORAGE_BACKEND, GAUTH_STORAGE_PASSPHRASE, GAUTH_SCOPES (comma
// separated) and GAUTH_DISABLE_STATE_CHECK.
package config

// Package logging provides the structured logging used across gauth.
//
// It is a thin layer over Go's standard slog package. Every entry carries a
// subsystem identifier so output can be filtered per component.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Authenticator", "Authorization attempt %s started", attemptID)
//	logging.Warn("CredentialStore", "Stored credential for %s is unreadable", account)
//	logging.Error("Config", err, "Failed to load %s", path)
//
// Libraries embedding gauth can hand over their own logger:
//
//	logging.InitForLibrary(myLogger)
//
// Until one of the Init functions is called, only WARN and ERROR entries are
// written (to stderr).
//
// # Subsystems
//
//   - Authenticator: authorization flow and request dispatch
//   - CredentialStore: credential persistence and storage backends
//   - Config: configuration loading
//   - UIHost: browser, out-of-band prompt and loopback callback hosts
//
// # Audit Logging
//
// Credential writes and renewals are recorded as audit events:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:    "credential_upsert",
//	    Outcome:   "success",
//	    Namespace: namespace,
//	    Account:   consumerKey,
//	})
//
// Token values are never logged; only namespaces, accounts and expiry times.
package logging

// Package credential persists the client identity and token state of an
// authenticator.
//
// A Credential is a ClientIdentity plus an oauth.TokenState. It is stored as a
// flat Record under a fixed namespace, keyed by the consumer key. The Store
// type gives the authenticator read and upsert semantics on top of any
// SecureStorage collaborator:
//
//	storage, err := credential.NewFileStorage(dir, passphrase)
//	store := credential.NewStore(storage, credential.DefaultNamespace)
//
//	cred, ok := store.Read(ctx, consumerKey)
//	err = store.Upsert(ctx, cred)
//
// # Backends
//
//   - MemoryStorage: in-process map, used by tests and short-lived tools
//   - FileStorage: one AES-GCM sealed file per account, key derived with Argon2id
//   - SQLiteStorage: sealed payloads in a SQLite table (modernc.org/sqlite)
//   - KubernetesStorage: one Secret per account (controller-runtime client)
//
// SECURITY: token values are never logged. Files are written 0600 in 0700
// directories.
package credential

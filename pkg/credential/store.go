package credential

import (
	"context"
	"errors"
	"sync"

	"gauth/pkg/logging"
)

// DefaultNamespace is the fixed service namespace credentials are stored under.
const DefaultNamespace = "com.touchwonders.GoogleAuthenticator"

const logSubsystem = "CredentialStore"

// Store reads and writes credentials through a SecureStorage collaborator.
// Writes are serialized so a read-then-create never races a second writer
// inside the same process.
type Store struct {
	storage   SecureStorage
	namespace string

	writeMu sync.Mutex
}

// NewStore returns a store for the given namespace. An empty namespace
// selects DefaultNamespace.
func NewStore(storage SecureStorage, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{storage: storage, namespace: namespace}
}

// Namespace returns the namespace records are stored under.
func (s *Store) Namespace() string {
	return s.namespace
}

// Read returns the persisted credential for the consumer key. The boolean is
// false when no record exists. Storage failures are logged and reported as
// absent so a broken store degrades to "not authorized" instead of failing.
func (s *Store) Read(ctx context.Context, consumerKey string) (Credential, bool) {
	record, err := s.storage.Get(ctx, s.namespace, consumerKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.WarnErr(logSubsystem, err, "Failed to read credential for %s, treating as absent", consumerKey)
			logging.Audit(logging.AuditEvent{
				Action:    "credential_read",
				Outcome:   "error",
				Namespace: s.namespace,
				Account:   consumerKey,
			})
		}
		return Credential{}, false
	}

	cred := FromRecord(record)
	if cred.ConsumerKey == "" {
		cred.ConsumerKey = consumerKey
	}

	logging.Debug(logSubsystem, "Loaded credential for %s (authorized=%t)", consumerKey, cred.Token.IsAuthorized())
	return cred, true
}

// Upsert creates the record when absent and replaces it otherwise.
func (s *Store) Upsert(ctx context.Context, cred Credential) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	account := cred.ConsumerKey
	record := cred.Record()

	op := "create"
	_, err := s.storage.Get(ctx, s.namespace, account)
	switch {
	case err == nil:
		op = "update"
		err = s.storage.Update(ctx, s.namespace, account, record)
		if errors.Is(err, ErrNotFound) {
			// Removed by another process between the read and the write.
			op = "create"
			err = s.storage.Create(ctx, s.namespace, account, record)
		}
	case errors.Is(err, ErrNotFound):
		err = s.storage.Create(ctx, s.namespace, account, record)
		if errors.Is(err, ErrAlreadyExists) {
			op = "update"
			err = s.storage.Update(ctx, s.namespace, account, record)
		}
	default:
		// The read failed for another reason; the write may still succeed.
		logging.WarnErr(logSubsystem, err, "Pre-write read failed for %s", account)
		err = s.storage.Create(ctx, s.namespace, account, record)
		if errors.Is(err, ErrAlreadyExists) {
			op = "update"
			err = s.storage.Update(ctx, s.namespace, account, record)
		}
	}

	if err != nil {
		logging.Audit(logging.AuditEvent{
			Action:    "credential_" + op,
			Outcome:   "error",
			Namespace: s.namespace,
			Account:   account,
		})
		return &StoreError{Op: op, Namespace: s.namespace, Account: account, Err: err}
	}

	logging.Audit(logging.AuditEvent{
		Action:    "credential_" + op,
		Outcome:   "success",
		Namespace: s.namespace,
		Account:   account,
	})
	return nil
}

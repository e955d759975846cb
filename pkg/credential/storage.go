package credential

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record exists for the account.
	ErrNotFound = errors.New("credential not found")

	// ErrAlreadyExists is returned by Create when a record already exists.
	ErrAlreadyExists = errors.New("credential already exists")
)

// SecureStorage is the platform secure-storage collaborator. Records are
// addressed by a namespace and an account name; implementations must keep
// the values confidential at rest.
type SecureStorage interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, namespace, account string) (Record, error)

	// Create inserts a record or returns ErrAlreadyExists.
	Create(ctx context.Context, namespace, account string, record Record) error

	// Update replaces an existing record or returns ErrNotFound.
	Update(ctx context.Context, namespace, account string, record Record) error
}

// StoreError wraps a storage failure with the operation and key it affected.
type StoreError struct {
	Op        string
	Namespace string
	Account   string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("credential %s %s/%s: %v", e.Op, e.Namespace, e.Account, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

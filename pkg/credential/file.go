package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultStorageDir is the directory, relative to the user's home, used by
// FileStorage when none is configured.
const DefaultStorageDir = ".config/gauth/credentials"

const (
	saltFileName   = ".salt"
	credentialExt  = ".cred"
	accountHashLen = 32
)

// FileStorage stores each record as an AES-GCM sealed file.
//
// Layout:
//
//	<dir>/.salt
//	<dir>/<namespace>/<sha256(account)[:32]>.cred
//
// SECURITY: files are written 0600 and directories 0700. Writes go through a
// temporary file and a rename so readers never observe a partial record.
type FileStorage struct {
	mu     sync.Mutex
	dir    string
	sealer *Sealer
}

// NewFileStorage opens (or initializes) a sealed file storage rooted at dir.
// An empty dir selects DefaultStorageDir under the user's home.
func NewFileStorage(dir, passphrase string) (*FileStorage, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultStorageDir)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFileName))
	if err != nil {
		return nil, err
	}
	sealer, err := NewSealer(passphrase, salt)
	if err != nil {
		return nil, err
	}

	return &FileStorage{dir: dir, sealer: sealer}, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	// #nosec G304 -- path is derived from the configured storage directory
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) < SaltSize {
			return nil, fmt.Errorf("salt file %s is corrupt", path)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt, err = NewSalt()
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, salt); err != nil {
		return nil, fmt.Errorf("failed to write salt: %w", err)
	}
	return salt, nil
}

// Dir returns the storage root.
func (f *FileStorage) Dir() string {
	return f.dir
}

// Path returns the file a record is (or would be) stored in.
func (f *FileStorage) Path(namespace, account string) string {
	sum := sha256.Sum256([]byte(account))
	name := hex.EncodeToString(sum[:])[:accountHashLen] + credentialExt
	return filepath.Join(f.dir, sanitizeFilename(namespace), name)
}

func (f *FileStorage) Get(_ context.Context, namespace, account string) (Record, error) {
	// #nosec G304 -- path is built from a hash of the account name
	payload, err := os.ReadFile(f.Path(namespace, account))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	return f.sealer.Open(namespace, account, payload)
}

func (f *FileStorage) Create(_ context.Context, namespace, account string, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(namespace, account)
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyExists
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat credential file: %w", err)
	}
	return f.write(namespace, account, path, record)
}

func (f *FileStorage) Update(_ context.Context, namespace, account string, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(namespace, account)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat credential file: %w", err)
	}
	return f.write(namespace, account, path, record)
}

func (f *FileStorage) write(namespace, account, path string, record Record) error {
	payload, err := f.sealer.Seal(namespace, account, record)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create namespace directory: %w", err)
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// sanitizeFilename makes a namespace safe to use as a directory name.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	sanitized := replacer.Replace(name)
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "._")
	if sanitized == "" {
		sanitized = "default"
	}
	return sanitized
}

package cmd

import (
	"context"
	"fmt"
	"io"

	"gauth/internal/config"
	"gauth/pkg/authenticator"
	"gauth/pkg/credential"
	"gauth/pkg/logging"
)

// session bundles what every command needs: the loaded configuration, the
// storage backend and an authenticator hydrated from it.
type session struct {
	cfg     config.Config
	storage credential.SecureStorage
	auth    *authenticator.Authenticator

	closeStorage func() error
}

// loadConfig loads the configuration and applies overrides before it is
// validated again. Overrides come from command flags.
func loadConfig(logOut io.Writer, overrides ...func(*config.Config)) (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if len(overrides) > 0 {
		for _, override := range overrides {
			override(&cfg)
		}
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}

	if logLevel == "" {
		// Validate has already accepted the level.
		level, _ := logging.ParseLevel(cfg.LogLevel)
		logging.InitForCLI(level, logOut)
	}
	return cfg, nil
}

// openStorage builds the configured backend. The returned close function is
// never nil.
func openStorage(ctx context.Context, cfg config.Config) (credential.SecureStorage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return credential.NewMemoryStorage(), noop, nil
	case config.BackendFile:
		fs, err := credential.NewFileStorage(cfg.Storage.Dir, cfg.Storage.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	case config.BackendSQLite:
		db, err := credential.OpenSQLiteStorage(ctx, cfg.Storage.Path, cfg.Storage.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case config.BackendKubernetes:
		ks, err := credential.NewKubernetesStorageFromConfig(cfg.Storage.KubeNamespace)
		if err != nil {
			return nil, nil, err
		}
		return ks, noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// newAuthenticator wires config and storage into an authenticator.
func newAuthenticator(ctx context.Context, cfg config.Config, storage credential.SecureStorage) (*authenticator.Authenticator, error) {
	identity, err := cfg.Identity()
	if err != nil {
		return nil, err
	}
	scopes, err := cfg.ScopeSet()
	if err != nil {
		return nil, err
	}
	callback, err := cfg.CallbackEndpoint()
	if err != nil {
		return nil, err
	}

	return authenticator.New(ctx, authenticator.Config{
		Identity:          identity,
		Scopes:            scopes,
		Callback:          callback,
		Store:             credential.NewStore(storage, cfg.Storage.Namespace),
		Endpoint:          cfg.OAuthEndpoint(),
		DisableStateCheck: cfg.DisableStateCheck,
	})
}

// openSession loads the config and opens storage and the authenticator.
// Callers must Close the session.
func openSession(ctx context.Context, logOut io.Writer, overrides ...func(*config.Config)) (*session, error) {
	cfg, err := loadConfig(logOut, overrides...)
	if err != nil {
		return nil, err
	}

	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s credential storage: %w", cfg.Storage.Backend, err)
	}

	auth, err := newAuthenticator(ctx, cfg, storage)
	if err != nil {
		_ = closeStorage()
		return nil, err
	}

	logging.Debug("CLI", "Opened session for %s using the %s backend", cfg.ClientID, cfg.Storage.Backend)
	return &session{cfg: cfg, storage: storage, auth: auth, closeStorage: closeStorage}, nil
}

// Close releases the storage backend.
func (s *session) Close() {
	if err := s.closeStorage(); err != nil {
		logging.WarnErr("CLI", err, "Failed to close credential storage")
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gauth/internal/config"
	"gauth/pkg/credential"
	"gauth/pkg/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces the burst of events an atomic rewrite produces.
const watchDebounce = 200 * time.Millisecond

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the credential status whenever the stored credential changes",
		Long: `Watches the stored credential of the file backend and prints the
status table each time it is written, for example after another process
runs 'gauth login' or renews the access token. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sess, err := openSession(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	fs, ok := sess.storage.(*credential.FileStorage)
	if !ok {
		return fmt.Errorf("watch requires the %s storage backend, configured backend is %s",
			config.BackendFile, sess.cfg.Storage.Backend)
	}

	store := sess.auth.Store()
	show := func(cred credential.Credential, found bool) {
		view := statusView{
			ConsumerKey: sess.cfg.ClientID,
			Backend:     sess.cfg.Storage.Backend,
			Namespace:   store.Namespace(),
			Scopes:      sess.cfg.Scopes,
		}
		if found {
			view.Token = cred.Token
		}
		fmt.Fprintf(out, "\n%s\n", time.Now().Format(time.RFC3339))
		renderStatus(out, view)
	}

	w, err := newCredentialWatcher(fs, store, sess.cfg.ClientID, show)
	if err != nil {
		return err
	}
	defer w.Close()

	show(sess.auth.Store().Read(ctx, sess.cfg.ClientID))
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s\n", w.path)
	return w.Run(ctx)
}

// credentialWatcher reloads one stored credential when its file changes.
type credentialWatcher struct {
	fsWatcher   *fsnotify.Watcher
	store       *credential.Store
	consumerKey string
	path        string
	onChange    func(credential.Credential, bool)

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// newCredentialWatcher starts watching the directory holding the record.
// The directory is created if needed so a first login is observed too.
func newCredentialWatcher(fs *credential.FileStorage, store *credential.Store, consumerKey string, onChange func(credential.Credential, bool)) (*credentialWatcher, error) {
	path := fs.Path(store.Namespace(), consumerKey)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory %s: %w", dir, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &credentialWatcher{
		fsWatcher:   fsWatcher,
		store:       store,
		consumerKey: consumerKey,
		path:        path,
		onChange:    onChange,
	}, nil
}

// Run processes events until ctx is done.
func (w *credentialWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("CredentialWatcher", err, "fsnotify error")
		}
	}
}

func (w *credentialWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	logging.Debug("CredentialWatcher", "Credential file event: %s", event.Op)

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(watchDebounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(w.store.Read(ctx, w.consumerKey))
	})
}

// Close stops watching.
func (w *credentialWatcher) Close() {
	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
	_ = w.fsWatcher.Close()
}

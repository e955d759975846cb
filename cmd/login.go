package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"gauth/internal/config"
	"gauth/internal/uihost"
	"gauth/pkg/authenticator"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	loginHost  string
	loginForce bool
	loginQuiet bool
)

// Replaced in tests.
var (
	newLineReader                       = uihost.NewReadline
	openBrowser   uihost.BrowserOpener = uihost.OpenBrowser
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize gauth against the configured Google account",
		Long: `Runs the OAuth 2.0 installed-application flow.

The authorize URL is presented according to --host:
  browser   open the browser and paste the redirect URL or code back (default)
  oob       print the URL only and paste the redirect URL or code back
  loopback  open the browser and receive the redirect on a local listener

The granted credential is written to the configured storage backend.
If a credential is already stored, login does nothing unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&loginHost, "host", "", "How to present the authorize URL: browser, oob or loopback (overrides host.mode)")
	cmd.Flags().BoolVar(&loginForce, "force", false, "Authorize again even if a credential is stored")
	cmd.Flags().BoolVarP(&loginQuiet, "quiet", "q", false, "Suppress the progress spinner")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	sess, err := openSession(cmd.Context(), errOut, func(cfg *config.Config) {
		if loginHost != "" {
			cfg.Host.Mode = loginHost
		}
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	if sess.auth.IsAuthorized() && !loginForce {
		fmt.Fprintf(out, "%s as %s. Use --force to authorize again.\n",
			text.FgGreen.Sprint("Already authorized"), sess.cfg.ClientID)
		return nil
	}

	host, closeHost, err := newUIHost(sess, errOut)
	if err != nil {
		return err
	}
	defer closeHost()

	ctx, cancel := context.WithTimeout(cmd.Context(), sess.cfg.Host.Timeout)
	defer cancel()

	if err := authorizeWithSpinner(ctx, sess, host, errOut); err != nil {
		return err
	}

	token := sess.auth.Token()
	fmt.Fprintf(out, "%s as %s\n", text.FgGreen.Sprint("Authorization successful"), sess.cfg.ClientID)
	if !token.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "  Access token expires %s\n", formatExpiry(token.ExpiresAt))
	}
	if token.HasRefreshToken() {
		fmt.Fprintln(out, "  Refresh: Available")
	}
	return nil
}

// authorizeWithSpinner runs the flow. The spinner only runs for the loopback
// host: the prompt hosts read from the terminal the spinner would draw over.
func authorizeWithSpinner(ctx context.Context, sess *session, host authenticator.UIHost, errOut io.Writer) error {
	if loginQuiet || sess.cfg.Host.Mode != config.HostModeLoopback {
		return sess.auth.Authorize(ctx, host)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = errOut
	s.Suffix = " Waiting for authorization in the browser..."
	s.Start()

	err := sess.auth.Authorize(ctx, host)
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint("Authorization failed") + "\n"
	}
	s.Stop()
	return err
}

// newUIHost builds the host selected by host.mode.
func newUIHost(sess *session, errOut io.Writer) (authenticator.UIHost, func(), error) {
	callback, err := sess.cfg.CallbackEndpoint()
	if err != nil {
		return nil, nil, err
	}

	switch sess.cfg.Host.Mode {
	case config.HostModeLoopback:
		host, err := uihost.NewLoopbackHost(sess.auth, callback, sess.cfg.Host.ListenAddr, openBrowser, errOut)
		if err != nil {
			return nil, nil, err
		}
		return host, host.Close, nil
	case config.HostModeOOB:
		return uihost.NewPromptHost(sess.auth, callback,
			uihost.WithOutput(errOut),
			uihost.WithLineReader(newLineReader),
		), func() {}, nil
	default:
		return uihost.NewPromptHost(sess.auth, callback,
			uihost.WithOutput(errOut),
			uihost.WithLineReader(newLineReader),
			uihost.WithBrowser(openBrowser),
		), func() {}, nil
	}
}

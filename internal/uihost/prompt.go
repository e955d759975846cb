package uihost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"

	"gauth/pkg/authenticator"
	"gauth/pkg/logging"
	"gauth/pkg/oauth"
)

// LineReader reads one line of user input. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// NewReadline returns a readline-backed LineReader prompting for the redirect.
func NewReadline() (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Redirect URL or code: ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	return rl, nil
}

// PromptHost shows the authorize URL and reads the redirect the user pastes
// back. A bare authorization code is accepted as well; it is combined with
// the callback endpoint and the attempt's state.
type PromptHost struct {
	handler     RedirectHandler
	callback    oauth.CallbackEndpoint
	out         io.Writer
	openBrowser BrowserOpener
	newReader   func() (LineReader, error)
}

// PromptOption configures a PromptHost.
type PromptOption func(*PromptHost)

// WithBrowser opens the authorize URL with opener in addition to printing it.
func WithBrowser(opener BrowserOpener) PromptOption {
	return func(p *PromptHost) { p.openBrowser = opener }
}

// WithOutput sets where instructions are written. Defaults to stderr.
func WithOutput(w io.Writer) PromptOption {
	return func(p *PromptHost) { p.out = w }
}

// WithLineReader replaces the readline prompt.
func WithLineReader(newReader func() (LineReader, error)) PromptOption {
	return func(p *PromptHost) { p.newReader = newReader }
}

// NewPromptHost creates a prompt host that reports redirects to handler.
func NewPromptHost(handler RedirectHandler, callback oauth.CallbackEndpoint, opts ...PromptOption) *PromptHost {
	p := &PromptHost{
		handler:   handler,
		callback:  callback,
		out:       os.Stderr,
		newReader: NewReadline,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open prints the URL, optionally opens the browser, and starts reading
// input in the background. Interrupt or EOF cancels the attempt.
func (p *PromptHost) Open(ctx context.Context, authorizeURL string) error {
	fmt.Fprintln(p.out, "Open the following URL to authorize access:")
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "  "+text.FgCyan.Sprint(authorizeURL))
	fmt.Fprintln(p.out)

	if p.openBrowser != nil {
		if err := p.openBrowser(authorizeURL); err != nil {
			logging.WarnErr(logSubsystem, err, "Could not open browser")
			fmt.Fprintln(p.out, text.FgYellow.Sprint("Could not open a browser; open the URL manually."))
		}
	}
	fmt.Fprintln(p.out, "After granting access, paste the URL you were redirected to (or the code shown).")

	reader, err := p.newReader()
	if err != nil {
		return err
	}

	var closeOnce sync.Once
	closeReader := func() { closeOnce.Do(func() { _ = reader.Close() }) }
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			closeReader()
		case <-done:
		}
	}()
	go func() {
		defer close(done)
		defer closeReader()
		p.readLoop(reader, authorizeURL)
	}()
	return nil
}

func (p *PromptHost) readLoop(reader LineReader, authorizeURL string) {
	for {
		line, err := reader.Readline()
		if err != nil {
			if !errors.Is(err, readline.ErrInterrupt) && !errors.Is(err, io.EOF) {
				logging.WarnErr(logSubsystem, err, "Reading redirect failed")
			}
			p.handler.CancelAuthorization()
			return
		}

		redirect := p.redirectFrom(line, authorizeURL)
		if redirect == "" {
			continue
		}

		err = p.handler.HandleRedirect(redirect)
		switch {
		case err == nil:
			return
		case errors.Is(err, authenticator.ErrNoAuthorizationPending),
			errors.Is(err, authenticator.ErrRedirectAlreadyReceived):
			return
		default:
			fmt.Fprintln(p.out, text.FgRed.Sprintf("That does not look like the redirect (%v). Try again.", err))
		}
	}
}

// redirectFrom turns user input into a redirect URL. Input that already
// looks like a URL is passed through; anything else is taken as a code.
func (p *PromptHost) redirectFrom(input, authorizeURL string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if strings.Contains(input, ":/") || strings.Contains(input, "?") {
		return input
	}

	params := url.Values{"code": {input}}
	if u, err := url.Parse(authorizeURL); err == nil {
		if state := u.Query().Get("state"); state != "" {
			params.Set("state", state)
		}
	}
	return p.callback.String() + "?" + params.Encode()
}

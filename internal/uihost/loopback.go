package uihost

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"

	"gauth/pkg/logging"
	"gauth/pkg/oauth"
)

// LoopbackHost serves the callback endpoint on a loopback address and opens
// the browser at the authorize URL. The callback endpoint must be an
// http URL whose host is listenAddr.
type LoopbackHost struct {
	handler     RedirectHandler
	callback    oauth.CallbackEndpoint
	listenAddr  string
	out         io.Writer
	openBrowser BrowserOpener

	server *CallbackServer
}

// NewLoopbackHost creates a loopback host. A nil opener only prints the URL.
func NewLoopbackHost(handler RedirectHandler, callback oauth.CallbackEndpoint, listenAddr string, opener BrowserOpener, out io.Writer) (*LoopbackHost, error) {
	u, err := url.Parse(callback.String())
	if err != nil || u.Scheme != "http" {
		return nil, fmt.Errorf("loopback host needs an http callback endpoint, got %q", callback.String())
	}
	if listenAddr == "" {
		listenAddr = u.Host
	}
	if out == nil {
		out = os.Stderr
	}
	return &LoopbackHost{
		handler:     handler,
		callback:    callback,
		listenAddr:  listenAddr,
		out:         out,
		openBrowser: opener,
	}, nil
}

// Open starts the callback server and opens the browser.
func (l *LoopbackHost) Open(ctx context.Context, authorizeURL string) error {
	u, _ := url.Parse(l.callback.String())
	path := u.Path
	if path == "" {
		path = "/"
	}
	l.server = NewCallbackServer(l.listenAddr, path, l.callback.String(), l.handler)
	if _, err := l.server.Start(ctx); err != nil {
		return err
	}
	logging.Info(logSubsystem, "Waiting for the authorization redirect on %s", l.server.Addr())

	fmt.Fprintln(l.out, "Opening the browser to authorize access. If it does not open, visit:")
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, "  "+text.FgCyan.Sprint(authorizeURL))
	fmt.Fprintln(l.out)

	if l.openBrowser != nil {
		if err := l.openBrowser(authorizeURL); err != nil {
			logging.WarnErr(logSubsystem, err, "Could not open browser")
		}
	}
	return nil
}

// Close stops the callback server if it is still running.
func (l *LoopbackHost) Close() {
	if l.server != nil {
		l.server.Stop()
	}
}

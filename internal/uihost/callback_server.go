package uihost

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"

	"gauth/pkg/logging"
)

// DefaultReadHeaderTimeout bounds slow clients on the callback listener.
const DefaultReadHeaderTimeout = 10 * time.Second

// shutdownDelay gives the browser time to receive the page before the
// listener goes away.
const shutdownDelay = time.Second

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Funcs(sprig.FuncMap()).Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Funcs(sprig.FuncMap()).Parse(callbackErrorHTML))
)

// CallbackServer is a temporary loopback HTTP server that receives a single
// provider redirect and forwards it to a RedirectHandler.
type CallbackServer struct {
	listenAddr   string
	callbackPath string
	redirectBase string
	handler      RedirectHandler

	server    *http.Server
	listener  net.Listener
	once      sync.Once
	stopOnce  sync.Once
	handled   chan struct{}
	lastError error
	mu        sync.Mutex
}

// NewCallbackServer creates a callback server. redirectBase is the URL the
// provider redirects to (scheme, host and path); when empty it is derived
// from the listener address.
func NewCallbackServer(listenAddr, callbackPath, redirectBase string, handler RedirectHandler) *CallbackServer {
	if callbackPath == "" {
		callbackPath = "/callback"
	}
	return &CallbackServer{
		listenAddr:   listenAddr,
		callbackPath: callbackPath,
		redirectBase: redirectBase,
		handler:      handler,
		handled:      make(chan struct{}),
	}
}

// Start listens and serves until the context is cancelled, a redirect has
// been handled, or Stop is called. It returns the redirect base URL.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", s.listenAddr, err)
	}
	s.listener = listener
	if s.redirectBase == "" {
		s.redirectBase = "http://" + listener.Addr().String() + s.callbackPath
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.callbackPath, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnErr(logSubsystem, err, "Callback server stopped unexpectedly")
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug(logSubsystem, "Callback server listening on %s", listener.Addr())
	return s.redirectBase, nil
}

// Addr returns the address the server listens on.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handled is closed once a redirect has been processed.
func (s *CallbackServer) Handled() <-chan struct{} {
	return s.handled
}

// Err returns the error the handler reported for the processed redirect.
func (s *CallbackServer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// isAuthorizationResponse reports whether the request carries the query
// parameters of an authorization response.
func isAuthorizationResponse(r *http.Request) bool {
	q := r.URL.Query()
	return q.Has("code") || q.Has("error") || q.Has("state")
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	// Favicon and prefetch requests must not consume the callback.
	if r.URL.Path != s.callbackPath {
		http.NotFound(w, r)
		return
	}
	if !isAuthorizationResponse(r) {
		http.Error(w, "Missing authorization response", http.StatusBadRequest)
		return
	}

	handled := false
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	redirect := s.redirectBase
	if r.URL.RawQuery != "" {
		redirect += "?" + r.URL.RawQuery
	}
	err := s.handler.HandleRedirect(redirect)

	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()

	query := r.URL.Query()
	tmpl := successTemplate
	data := map[string]interface{}{
		"Title":      "gauth",
		"ReceivedAt": time.Now(),
	}
	status := http.StatusOK
	switch {
	case query.Get("error") != "":
		tmpl = errorTemplate
		data["Error"] = query.Get("error")
		data["Description"] = query.Get("error_description")
	case err != nil:
		tmpl = errorTemplate
		status = http.StatusBadRequest
		data["Error"] = "invalid_callback"
		data["Description"] = err.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logging.WarnErr(logSubsystem, err, "Failed to render callback page")
	}

	close(s.handled)
	go func() {
		time.Sleep(shutdownDelay)
		s.Stop()
	}()
}

// Stop shuts the server down. It is safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

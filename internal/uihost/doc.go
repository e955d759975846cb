// Package uihost implements the hosts that present the authorize URL to the
// user and hand the terminal redirect back to the authenticator.
//
//   - PromptHost prints the URL (optionally opening the system browser) and
//     reads the redirect URL or bare code pasted by the user.
//   - LoopbackHost opens the browser and serves a one-shot HTTP callback on
//     a loopback address; the provider redirects straight to it.
//
// Both satisfy authenticator.UIHost.
package uihost

// RedirectHandler receives the redirect captured by a host. It is
// implemented by *authenticator.Authenticator.
type RedirectHandler interface {
	HandleRedirect(rawURL string) error
	CancelAuthorization()
}

const logSubsystem = "UIHost"

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gauth/pkg/oauth"
	textutil "gauth/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var statusOutput string

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential",
		Long: `Shows whether a credential is stored for the configured client,
when its access token expires and whether it can be renewed.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
	cmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	view := statusView{
		ConsumerKey: sess.cfg.ClientID,
		Backend:     sess.cfg.Storage.Backend,
		Namespace:   sess.auth.Store().Namespace(),
		Scopes:      sess.cfg.Scopes,
		Token:       sess.auth.Token(),
	}

	switch statusOutput {
	case "table", "":
		renderStatus(cmd.OutOrStdout(), view)
		return nil
	case "json":
		data, err := json.MarshalIndent(view.document(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(view.document())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format %q, expected table, json or yaml", statusOutput)
	}
}

// statusView is what the status table shows.
type statusView struct {
	ConsumerKey string
	Backend     string
	Namespace   string
	Scopes      []string
	Token       oauth.TokenState
}

// statusDocument is the machine-readable form of statusView. Tokens are
// never included.
type statusDocument struct {
	ConsumerKey      string     `json:"consumerKey"`
	Backend          string     `json:"backend"`
	Namespace        string     `json:"namespace"`
	Scopes           []string   `json:"scopes,omitempty"`
	Authorized       bool       `json:"authorized"`
	Expired          bool       `json:"expired"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RefreshAvailable bool       `json:"refreshAvailable"`
}

func (v statusView) document() statusDocument {
	doc := statusDocument{
		ConsumerKey:      v.ConsumerKey,
		Backend:          v.Backend,
		Namespace:        v.Namespace,
		Scopes:           v.Scopes,
		Authorized:       v.Token.IsAuthorized(),
		Expired:          v.Token.IsExpired(),
		RefreshAvailable: v.Token.HasRefreshToken(),
	}
	if doc.Authorized && !v.Token.ExpiresAt.IsZero() {
		expiresAt := v.Token.ExpiresAt.UTC()
		doc.ExpiresAt = &expiresAt
	}
	return doc
}

func renderStatus(w io.Writer, v statusView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("FIELD"), text.FgHiCyan.Sprint("VALUE")})

	t.AppendRow(table.Row{"Consumer key", v.ConsumerKey})
	t.AppendRow(table.Row{"Storage", fmt.Sprintf("%s (%s)", v.Backend, v.Namespace)})
	if len(v.Scopes) > 0 {
		t.AppendRow(table.Row{"Scopes", strings.Join(v.Scopes, ", ")})
	}

	if !v.Token.IsAuthorized() {
		t.AppendRow(table.Row{"Status", text.FgYellow.Sprint("Not authorized")})
		t.Render()
		fmt.Fprintln(w, "Run 'gauth login' to authorize.")
		return
	}

	t.AppendRow(table.Row{"Status", text.FgGreen.Sprint("Authorized")})
	expiry := "no expiry recorded"
	if !v.Token.ExpiresAt.IsZero() {
		expiry = "expires " + formatExpiry(v.Token.ExpiresAt)
	}
	t.AppendRow(table.Row{"Access token", textutil.Mask(v.Token.AccessToken, 4) + ", " + expiry})
	if v.Token.HasRefreshToken() {
		t.AppendRow(table.Row{"Refresh", text.FgGreen.Sprint("Available")})
	} else {
		t.AppendRow(table.Row{"Refresh", text.FgYellow.Sprint("Not available")})
	}
	t.Render()
}

// formatExpiry describes expiresAt relative to now.
func formatExpiry(expiresAt time.Time) string {
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "less than a minute"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

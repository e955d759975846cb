package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var (
	getMethod  string
	getParams  []string
	getHeaders []string
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Send an authenticated request and print the response body",
		Long: `Sends a request signed with the stored credential and prints the
response body. An expired access token is renewed first.

Parameters are sent in the query string for GET, HEAD and DELETE and as a
form body otherwise.`,
		Example: `  gauth get https://www.googleapis.com/oauth2/v1/userinfo
  gauth get https://www.googleapis.com/analytics/v3/data/ga --param ids=ga:1234 --param metrics=ga:sessions`,
		Args: cobra.ExactArgs(1),
		RunE: runGet,
	}

	cmd.Flags().StringVarP(&getMethod, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringArrayVarP(&getParams, "param", "p", nil, "Request parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&getHeaders, "header", "H", nil, "Request header as 'Key: value' (repeatable)")
	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	params, err := parseParams(getParams)
	if err != nil {
		return err
	}
	headers, err := parseHeaders(getHeaders)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	resp, err := sess.auth.Do(cmd.Context(), getMethod, args[0], params, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

func parseParams(raw []string) (url.Values, error) {
	params := url.Values{}
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", kv)
		}
		params.Add(key, value)
	}
	return params, nil
}

func parseHeaders(raw []string) (http.Header, error) {
	headers := http.Header{}
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: value'", kv)
		}
		headers.Add(key, strings.TrimSpace(value))
	}
	return headers, nil
}

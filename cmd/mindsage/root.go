package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mindsage/internal/client"
	"mindsage/internal/config"
	"mindsage/internal/consul"
	"mindsage/internal/identity"
	"mindsage/internal/logger"
	"mindsage/internal/policy"
)

// app carries the global flags and lazily built collaborators shared by all commands.
type app struct {
	apiURL      string
	consulAddr  string
	sessionFile string
	identityURL string
	identityKey string
	token       string
	policyFile  string
	output      string
	logLevel    string

	observer *identity.Observer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mindsage",
		Short: "Command line client for the MindSage API",
		Long: `mindsage talks to the MindSage API on behalf of the signed-in user.

Calls that need credentials get a freshly refreshed ID token from the saved session;
public calls attach one only when a session exists.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.output != "json" && a.output != "yaml" {
				return fmt.Errorf("unknown output format %q (json or yaml)", a.output)
			}
			return nil
		},
	}

	defaultSession := ""
	if dir, err := os.UserConfigDir(); err == nil {
		defaultSession = filepath.Join(dir, "mindsage", "session.yaml")
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api", config.GetEnvOrDefault("MINDSAGE_API_URL", "http://localhost:8080"), "API base URL")
	flags.StringVar(&a.consulAddr, "consul", os.Getenv("CONSUL_HTTP_ADDR"), "discover the API through this Consul agent instead of --api")
	flags.StringVar(&a.sessionFile, "session-file", config.GetEnvOrDefault("MINDSAGE_SESSION_FILE", defaultSession), "where the signed-in session is kept")
	flags.StringVar(&a.identityURL, "identity-url", os.Getenv("IDENTITY_URL"), "identity provider base URL")
	flags.StringVar(&a.identityKey, "identity-key", os.Getenv("IDENTITY_ANON_KEY"), "identity provider public API key")
	flags.StringVar(&a.token, "token", os.Getenv("MINDSAGE_TOKEN"), "use this ID token instead of the saved session")
	flags.StringVar(&a.policyFile, "policy-file", "", "YAML route policy overriding the built-in client table")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")
	flags.StringVar(&a.logLevel, "log-level", config.GetEnvOrDefault("LOG_LEVEL", "warn"), "debug, info, warn or error")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newAuthCheckCmd(a),
		newMeCmd(a),
		newPrefsCmd(a),
		newAvatarsCmd(a),
		newCommunityCmd(a),
		newTherapistsCmd(a),
	)
	return root
}

// session returns the observer, restoring the saved session on first use and keeping
// the file in step with every later change.
func (a *app) session() *identity.Observer {
	if a.observer != nil {
		return a.observer
	}
	a.observer = identity.NewObserver(identity.ObserverConfig{URL: a.identityURL, APIKey: a.identityKey})
	if a.sessionFile == "" {
		return a.observer
	}
	if creds, err := identity.LoadCredentials(a.sessionFile); err == nil && creds.AccessToken != "" {
		a.observer.Restore(creds)
	}
	path := a.sessionFile
	a.observer.OnChange(func(c *identity.Credentials) {
		// Best effort; the next command simply signs in again
		_ = identity.SaveCredentials(path, c)
	})
	return a.observer
}

func (a *app) client(cmd *cobra.Command) (*client.Client, error) {
	ctx := cmd.Context()
	baseURL := a.apiURL
	if a.consulAddr != "" {
		registry, err := consul.NewClient(a.consulAddr, os.Getenv("CONSUL_HTTP_TOKEN"))
		if err != nil {
			return nil, err
		}
		instance, err := registry.DiscoverOne(ctx, consul.ServiceName)
		if err != nil {
			return nil, err
		}
		baseURL = instance.BaseURL()
	}

	var table *policy.Table
	if a.policyFile != "" {
		t, err := policy.Load(a.policyFile)
		if err != nil {
			return nil, err
		}
		table = t
	}

	var session client.SessionProvider = a.session()
	if a.token != "" {
		session = client.StaticSession(a.token)
	}

	return client.New(client.Config{
		BaseURL: baseURL,
		Session: session,
		Policy:  table,
		Logger:  logger.Build(logger.Options{Level: a.logLevel, Format: "text", Output: cmd.ErrOrStderr()}),
	}), nil
}

// call sends one request and prints the result.
func (a *app) call(cmd *cobra.Command, method, path string, body interface{}, opts ...client.Option) error {
	c, err := a.client(cmd)
	if err != nil {
		return err
	}
	raw, err := c.Do(cmd.Context(), method, path, body, opts...)
	if err != nil {
		return err
	}
	return a.render(cmd.OutOrStdout(), raw)
}

func (a *app) render(w io.Writer, raw json.RawMessage) error {
	if raw == nil {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}

	if a.output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// describe turns an API failure into a message for the terminal.
func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		if len(apiErr.Details) > 0 {
			msg += "\n" + string(apiErr.Details)
		}
		if apiErr.Status == 401 {
			msg += "\nhint: run `mindsage login` first"
		}
		return msg
	}
	return err.Error()
}

// Package commands implements the churnctl command tree.
package commands

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg/client"
	"github.com/nimeshabuddhika/churnshield/services/churnctl/internal/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options let tests point the CLI at a temporary state file and a test server.
type Options struct {
	StatePath  string
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *zap.Logger
}

type cli struct {
	opts      Options
	statePath string
	server    string
	verbose   bool
	st        *state.State
	logger    *zap.Logger
}

// NewRootCmd builds the churnctl command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:   "churnctl",
		Short: "Command-line client for the ChurnShield churn prediction API",
		Long: `churnctl talks to a churn-api server: log in, inspect dashboard statistics and
prediction logs, score customers and download PDF reports.

Session and theme are kept in ~/.config/churnshield/state.yaml.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVar(&c.statePath, "state", opts.StatePath, "state file (default ~/.config/churnshield/state.yaml)")
	root.PersistentFlags().StringVar(&c.server, "server", "", "API base URL (saved for later calls)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.statsCmd(),
		c.logsCmd(),
		c.featuresCmd(),
		c.predictCmd(),
		c.reportCmd(),
		c.batchCmd(),
		c.themeCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	c.logger = c.opts.Logger
	if c.logger == nil {
		c.logger = zap.NewNop()
		if c.verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			c.logger = l
		}
	}
	if c.statePath == "" {
		p, err := state.DefaultPath()
		if err != nil {
			return err
		}
		c.statePath = p
	}
	st, err := state.Load(c.statePath)
	if err != nil {
		return err
	}
	if c.server != "" && c.server != st.Server {
		st.Server = c.server
		if err := st.Save(c.statePath); err != nil {
			return err
		}
	}
	c.st = st
	c.logger.Debug("state_loaded", zap.String("path", c.statePath), zap.String("server", st.Server))
	return nil
}

// api returns a client carrying the active session token, if any.
func (c *cli) api() *client.Client {
	opts := []client.Option{}
	if c.opts.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(c.opts.HTTPClient))
	}
	if sess, ok := c.st.ActiveSession(c.opts.Now()); ok {
		opts = append(opts, client.WithToken(sess.AccessToken))
	}
	return client.New(c.st.Server, opts...)
}

func (c *cli) save() error { return c.st.Save(c.statePath) }

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isUnauthorized reports a 401 from the server.
func isUnauthorized(err error) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }

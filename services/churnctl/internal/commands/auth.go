package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/nimeshabuddhika/churnshield/services/churnctl/internal/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Long:  `Log in with username and password. The password is read from stdin when --password is omitted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("password is required")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			resp, err := c.api().Login(ctxOf(cmd), username, password)
			if err != nil {
				// a failed login leaves any stored session untouched
				return err
			}
			c.st.Session = &state.Session{
				AccessToken: resp.AccessToken,
				Username:    resp.Username,
				FullName:    resp.FullName,
				ExpiresAt:   resp.ExpiresAt,
			}
			if err := c.save(); err != nil {
				return err
			}
			c.logger.Debug("session_saved", zap.Time("expires_at", resp.ExpiresAt))
			fmt.Fprintf(out(cmd), "Logged in as %s (%s)\n", resp.FullName, resp.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := c.st.ActiveSession(c.opts.Now()); ok {
				if err := c.api().Logout(ctxOf(cmd)); err != nil && !isUnauthorized(err) {
					c.logger.Warn("server_logout_failed", zap.Error(err))
				}
			}
			c.st.ClearSession()
			if err := c.save(); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), "Logged out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, ok := c.st.ActiveSession(c.opts.Now())
			if !ok {
				fmt.Fprintln(out(cmd), "Not logged in")
				return nil
			}
			fmt.Fprintf(out(cmd), "%s (%s) on %s, session expires %s\n",
				sess.FullName, sess.Username, c.st.Server, sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}

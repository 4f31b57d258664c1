package commands

import (
	"fmt"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Show, set or toggle the theme preference",
		Long:      `Without an argument the theme toggles. The preference is stored locally and synced to the server when logged in.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pkg.ThemeDark), string(pkg.ThemeLight)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				c.st.Theme = pkg.Theme(args[0])
			} else {
				c.st.ToggleTheme()
			}
			if err := c.save(); err != nil {
				return err
			}
			if _, ok := c.st.ActiveSession(c.opts.Now()); ok {
				if _, err := c.api().UpdateSettings(ctxOf(cmd), c.st.Theme); err != nil {
					c.logger.Warn("theme_sync_failed", zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not sync theme to server: %v\n", err)
				}
			}
			fmt.Fprintf(out(cmd), "Theme: %s\n", c.st.Theme)
			return nil
		},
	}
}

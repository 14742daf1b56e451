package cmd

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/credstore"
	"github.com/KaramelBytes/qstorm-cli/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !interactive() {
			return fmt.Errorf("dashboard needs a terminal")
		}
		// stderr would draw over the alternate screen
		a, err := buildApp(cmd, io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		var changed chan struct{}
		if fs, ok := a.store.(*credstore.FileStore); ok {
			changed = make(chan struct{}, 1)
			a.logger.Debug("watching credentials", "path", fs.Path())
			go func() {
				err := fs.Watch(ctx, func() {
					select {
					case changed <- struct{}{}:
					default:
					}
				})
				if err != nil {
					a.logger.Warn("credential watch stopped", "error", err)
				}
			}()
		}

		m := tui.New(tui.Options{
			Controller:         a.ctrl,
			Sessions:           a.client,
			ReloadIdentity:     a.reloadIdentity,
			SessionSelected:    a.persistSession,
			CredentialsChanged: changed,
			Mapper:             a.mapper,
			Logger:             a.logger,
		})
		if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			return err
		}
		return a.save()
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

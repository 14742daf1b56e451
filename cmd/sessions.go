package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List or switch sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsListCmd.RunE(cmd, args)
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions (the anonymous session when not logged in)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		st := a.ctrl.Snapshot()
		var list []api.SessionInfo
		if a.creds.Authenticated() {
			if list, err = a.client.ListSessions(cmd.Context()); err != nil {
				return err
			}
		} else if st.HasActive {
			list = []api.SessionInfo{{ID: st.Active.ID}}
		}
		return a.out.Sessions(list, st.Active.ID)
	},
}

var sessionsUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make another session the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		active, err := a.selectSession(cmd.Context(), api.ID(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Active session %s (%s)\n", active.ID, active.Provenance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsUseCmd)
}

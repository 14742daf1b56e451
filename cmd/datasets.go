package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
)

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"ds"},
	Short:   "List, select or rename the datasets of the active session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return datasetsListCmd.RunE(cmd, args)
	},
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets in the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.ctrl.RefreshCatalog(cmd.Context()); err != nil {
			if errors.Is(err, workflow.ErrNoActiveSession) {
				fmt.Fprintln(cmd.OutOrStdout(), "(no active session: upload a file or log in)")
				return nil
			}
			return err
		}
		st := a.ctrl.Snapshot()
		return a.out.Catalog(st.Catalog, st.DatasetID)
	},
}

var datasetsUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a dataset the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.ctrl.RefreshCatalog(cmd.Context()); err != nil {
			return err
		}
		if err := a.ctrl.SelectDataset(api.ID(args[0])); err != nil {
			return err
		}
		if err := a.save(); err != nil {
			return err
		}
		st := a.ctrl.Snapshot()
		ds, _ := st.Dataset()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Active dataset %s (%s)\n", st.DatasetID, ds.Name)
		return nil
	},
}

var datasetsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a dataset; names are unique within a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.ctrl.RefreshCatalog(cmd.Context()); err != nil {
			return err
		}
		if err := a.ctrl.Rename(cmd.Context(), api.ID(args[0]), args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Renamed dataset %s to %q\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsListCmd)
	datasetsCmd.AddCommand(datasetsUseCmd)
	datasetsCmd.AddCommand(datasetsRenameCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/render"
)

type statusReport struct {
	BaseURL    string `json:"base_url"`
	Backend    string `json:"backend"`
	LoggedIn   bool   `json:"logged_in"`
	Username   string `json:"username,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Provenance string `json:"provenance,omitempty"`
	DatasetID  string `json:"dataset_id,omitempty"`
	Target     string `json:"target_column,omitempty"`
	Histogram  string `json:"histogram_column,omitempty"`
	Aggregate  string `json:"aggregation,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend health, login and the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rep := statusReport{BaseURL: a.client.BaseURL()}
		if h, err := a.client.Health(cmd.Context()); err != nil {
			a.logger.Debug("health check failed", "error", err)
			rep.Backend = "unreachable: " + displayError(err)
		} else {
			rep.Backend = h.Status
		}
		c := a.creds.Current()
		rep.LoggedIn = !c.Empty()
		rep.Username = c.Username
		st := a.ctrl.Snapshot()
		if st.HasActive {
			rep.SessionID = st.Active.ID.String()
			rep.Provenance = st.Active.Provenance.String()
		}
		rep.DatasetID = st.DatasetID.String()
		rep.Target = st.Config.TargetColumn
		rep.Histogram = st.Config.HistogramColumn
		rep.Aggregate = string(st.Config.Aggregation)

		if a.out.Format == render.FormatJSON {
			return a.out.JSON(rep)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "backend:  %s (%s)\n", rep.BaseURL, rep.Backend)
		if rep.LoggedIn {
			fmt.Fprintf(w, "login:    %s\n", rep.Username)
		} else {
			fmt.Fprintln(w, "login:    (not logged in)")
		}
		if rep.SessionID != "" {
			fmt.Fprintf(w, "session:  %s (%s)\n", rep.SessionID, rep.Provenance)
		} else {
			fmt.Fprintln(w, "session:  (none, upload a file to start one)")
		}
		if rep.DatasetID != "" {
			fmt.Fprintf(w, "dataset:  %s\n", rep.DatasetID)
		}
		fmt.Fprintf(w, "analysis: target=%s histogram=%s aggregation=%s\n", rep.Target, rep.Histogram, rep.Aggregate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

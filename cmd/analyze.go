package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
)

var (
	anaTarget    string
	anaHistogram string
	anaAgg       string
	anaStore     string
	anaPeriod    string
	anaFrom      string
	anaTo        string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run time-series, Pareto and histogram analysis on the active dataset",
	Long: `Run the three analyses in order (time series, Pareto, histogram) against the
active session and dataset. Flags update the remembered analysis settings; a
failed step stops the run and earlier results are still printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		c := a.ctrl.Config()
		f := cmd.Flags()
		if f.Changed("target") {
			c.TargetColumn = anaTarget
		}
		if f.Changed("hist") {
			c.HistogramColumn = anaHistogram
		}
		if f.Changed("agg") {
			agg, err := api.ParseAggregation(anaAgg)
			if err != nil {
				return &workflow.ValidationError{Field: "aggregation", Message: err.Error()}
			}
			c.Aggregation = agg
		}
		if f.Changed("store") {
			c.Store = anaStore
		}
		if f.Changed("period") {
			c.Period = anaPeriod
		}
		if f.Changed("from") {
			c.DateFrom = anaFrom
		}
		if f.Changed("to") {
			c.DateTo = anaTo
		}
		if err := a.ctrl.SetConfig(c); err != nil {
			return err
		}

		runErr := a.ctrl.Run(cmd.Context())
		var ve *workflow.ValidationError
		if errors.As(runErr, &ve) {
			return runErr
		}
		if err := a.save(); err != nil {
			return err
		}
		if rs := a.ctrl.Results(); !rs.Empty() || runErr == nil {
			if err := a.out.Results(rs); err != nil {
				return err
			}
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaTarget, "target", "", "numeric column to analyze (default Total_Sales or the first column)")
	analyzeCmd.Flags().StringVar(&anaHistogram, "hist", "", "column for the histogram (default: the target column)")
	analyzeCmd.Flags().StringVar(&anaAgg, "agg", "", "time-series aggregation: daily, weekly or monthly")
	analyzeCmd.Flags().StringVar(&anaStore, "store", "", "restrict to one store")
	analyzeCmd.Flags().StringVar(&anaPeriod, "period", "", "Pareto period (YYYY-MM)")
	analyzeCmd.Flags().StringVar(&anaFrom, "from", "", "time-series start date (YYYY-MM-DD, needs --to)")
	analyzeCmd.Flags().StringVar(&anaTo, "to", "", "time-series end date (YYYY-MM-DD, needs --from)")
}

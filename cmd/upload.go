package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/workflow"
)

var (
	uploadName  string
	uploadSheet string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a CSV or Excel file as a new dataset",
	Long: `Upload a .csv, .xlsx or .xls file into the active session. Without a session
(not logged in and nothing uploaded yet) the platform creates an anonymous one,
which becomes the active session. The uploaded dataset becomes the active dataset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.ctrl.Upload(cmd.Context(), workflow.UploadInput{
			FileName:  filepath.Base(path),
			Content:   content,
			SheetName: uploadSheet,
			Name:      uploadName,
		})
		if err != nil {
			return err
		}
		if err := a.save(); err != nil {
			return err
		}
		return a.out.Upload(res)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "dataset name (default: file name without extension)")
	uploadCmd.Flags().StringVar(&uploadSheet, "sheet", "", "worksheet to import from an Excel workbook")
}

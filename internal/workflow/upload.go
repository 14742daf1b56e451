package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/spreadsheet"
)

// UploadBackend is the subset of the platform API uploads need.
type UploadBackend interface {
	Upload(ctx context.Context, req api.UploadRequest) (*api.UploadResult, error)
}

// UploadInput is one file submitted by the user.
type UploadInput struct {
	FileName  string
	Content   []byte
	SheetName string
	// Name is the dataset display name; empty derives it from FileName.
	Name string
}

// UploadIntake validates and submits files.
type UploadIntake struct {
	backend UploadBackend
	logger  *slog.Logger
}

// NewUploadIntake wires an UploadIntake to its backend.
func NewUploadIntake(backend UploadBackend, logger *slog.Logger) *UploadIntake {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadIntake{backend: backend, logger: logger.With("component", "upload")}
}

// DefaultDatasetName strips the extension (text after the last '.') from
// the base file name.
func DefaultDatasetName(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSpace(base)
}

// Validate runs the local checks. It returns the sheet name normalised to
// the workbook's spelling.
func (u *UploadIntake) Validate(in UploadInput) (string, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return "", &ValidationError{Field: "file", Message: "Select a file to upload"}
	}
	format, err := spreadsheet.DetectFormat(in.FileName)
	if err != nil {
		return "", &ValidationError{Field: "file", Message: "Only .csv, .xlsx and .xls files are supported"}
	}
	if len(in.Content) == 0 {
		return "", &ValidationError{Field: "file", Message: "The file is empty"}
	}
	sheet := strings.TrimSpace(in.SheetName)
	if sheet == "" {
		return "", nil
	}
	switch format {
	case spreadsheet.FormatCSV:
		return "", &ValidationError{Field: "sheet_name", Message: "Sheet names apply to Excel files only"}
	case spreadsheet.FormatXLSX:
		name, err := spreadsheet.CheckSheet(in.Content, sheet)
		if err != nil {
			return "", &ValidationError{Field: "sheet_name", Message: err.Error()}
		}
		return name, nil
	}
	// legacy .xls is checked server-side
	return sheet, nil
}

// Submit validates in and uploads it. sessionID attaches the dataset to an
// existing session; zero lets the server create one.
func (u *UploadIntake) Submit(ctx context.Context, in UploadInput, sessionID api.ID) (*api.UploadResult, error) {
	sheet, err := u.Validate(in)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = DefaultDatasetName(in.FileName)
	}
	res, err := u.backend.Upload(ctx, api.UploadRequest{
		FileName:  in.FileName,
		Content:   in.Content,
		SessionID: sessionID,
		SheetName: sheet,
		Name:      name,
	})
	if err != nil {
		u.logger.Warn("upload failed", "file", filepath.Base(in.FileName), "error", err)
		return nil, fmt.Errorf("upload %s: %w", filepath.Base(in.FileName), err)
	}
	u.logger.Info("uploaded dataset",
		"file", filepath.Base(in.FileName), "session_id", res.SessionID,
		"dataset_id", res.DatasetID, "rows", res.Rows, "columns", len(res.Columns))
	return res, nil
}

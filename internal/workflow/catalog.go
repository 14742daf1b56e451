package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
)

// CatalogBackend is the subset of the platform API the catalog needs.
type CatalogBackend interface {
	ListDatasets(ctx context.Context, sessionID api.ID) ([]api.Dataset, error)
	RenameDataset(ctx context.Context, datasetID api.ID, name string) (*api.RenameResult, error)
}

// CatalogSync lists the datasets of a session and renames them.
type CatalogSync struct {
	backend CatalogBackend
	logger  *slog.Logger
	group   singleflight.Group
}

// NewCatalogSync wires a CatalogSync to its backend.
func NewCatalogSync(backend CatalogBackend, logger *slog.Logger) *CatalogSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogSync{backend: backend, logger: logger.With("component", "catalog")}
}

// List returns the session's datasets in server order. Concurrent calls for
// the same session share one request. On failure the result is nil, never
// a partial list.
func (c *CatalogSync) List(ctx context.Context, sessionID api.ID) ([]api.Dataset, error) {
	if sessionID.IsZero() {
		return nil, ErrNoActiveSession
	}
	v, err, shared := c.group.Do(sessionID.String(), func() (any, error) {
		return c.backend.ListDatasets(ctx, sessionID)
	})
	if err != nil {
		c.logger.Warn("list datasets failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	list, _ := v.([]api.Dataset)
	c.logger.Debug("listed datasets", "session_id", sessionID, "count", len(list), "shared", shared)
	// callers own their copy; the slice may have been handed to other waiters
	out := make([]api.Dataset, len(list))
	copy(out, list)
	return out, nil
}

// Rename changes a dataset's display name. The id never changes.
func (c *CatalogSync) Rename(ctx context.Context, datasetID api.ID, name string) (*api.RenameResult, error) {
	name = strings.TrimSpace(name)
	if datasetID.IsZero() {
		return nil, &ValidationError{Field: "dataset", Message: "No dataset selected"}
	}
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "Dataset name is required"}
	}
	res, err := c.backend.RenameDataset(ctx, datasetID, name)
	if err != nil {
		return nil, fmt.Errorf("rename dataset %s: %w", datasetID, err)
	}
	c.logger.Info("renamed dataset", "dataset_id", datasetID, "name", res.Name)
	return res, nil
}

// RenamePhase is the state of a rename attempt.
type RenamePhase int

const (
	RenameIdle RenamePhase = iota
	RenameEditing
	RenameSubmitting
)

func (p RenamePhase) String() string {
	switch p {
	case RenameEditing:
		return "editing"
	case RenameSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// RenameAttempt is a pending edit of one dataset's name.
type RenameAttempt struct {
	DatasetID api.ID
	SessionID api.ID
	Proposed  string
	Phase     RenamePhase
	// Err is the failure of the last submit, if any.
	Err error
}

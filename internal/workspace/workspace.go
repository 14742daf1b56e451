// Package workspace persists the CLI's working state between invocations:
// the anonymous session created by uploads, the active dataset, known
// column lists and the analysis form.
package workspace

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/qstorm-cli/internal/utils"
)

// Analysis mirrors the analysis form fields.
type Analysis struct {
	TargetColumn    string `yaml:"target_column"`
	HistogramColumn string `yaml:"histogram_column"`
	Aggregation     string `yaml:"aggregation"`
	Store           string `yaml:"store,omitempty"`
	Period          string `yaml:"period,omitempty"`
	DateFrom        string `yaml:"date_from,omitempty"`
	DateTo          string `yaml:"date_to,omitempty"`
}

// State is the persisted workspace document.
type State struct {
	// LocalSession is the anonymous session id issued by the last upload.
	LocalSession string `yaml:"local_session,omitempty"`
	// ActiveSession is the session DatasetID and Columns belong to.
	ActiveSession    string              `yaml:"active_session,omitempty"`
	DatasetID        string              `yaml:"dataset_id,omitempty"`
	Columns          []string            `yaml:"columns,omitempty"`
	ColumnsByDataset map[string][]string `yaml:"columns_by_dataset,omitempty"`
	Analysis         Analysis            `yaml:"analysis"`
}

// Store reads and writes one workspace file.
type Store struct {
	Path string
}

// Load returns the saved state. A missing file yields an empty state.
func (s Store) Load() (*State, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse workspace %s: %w", s.Path, err)
	}
	return &st, nil
}

// Save writes the state atomically.
func (s Store) Save(st *State) error {
	b, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	return utils.SafeWriteFile(s.Path, b, 0o600)
}

// Reset removes the workspace file.
func (s Store) Reset() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

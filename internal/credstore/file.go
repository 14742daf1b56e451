package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/qstorm-cli/internal/utils"
)

// FileStore keeps credentials in an owner-only YAML file.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore at path.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (Credentials, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("credstore: read %s: %w", s.path, err)
	}
	var c Credentials
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("credstore: parse %s: %w", s.path, err)
	}
	return c, nil
}

func (s *FileStore) Save(_ context.Context, c Credentials) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("credstore: marshal: %w", err)
	}
	if err := utils.SafeWriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("credstore: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("credstore: remove %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Watch calls onChange whenever the credentials file is written, replaced
// or removed, e.g. by a login or logout in another terminal. It blocks
// until ctx is done.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("credstore: watcher: %w", err)
	}
	defer w.Close()
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credstore: create dir: %w", err)
	}
	// the directory is watched so atomic renames over the file are seen
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("credstore: watch %s: %w", dir, err)
	}
	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("credstore: watch: %w", err)
		}
	}
}

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// LoadFile parses the dataset at path.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge file: %w", err)
	}
	return Parse(data)
}

// NewFileRepository returns a Repository over the dataset at path.
func NewFileRepository(path string) (*Repository, error) {
	ds, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRepository(ds, OriginFile)
}

// Watch reloads path into repo whenever it is written or replaced, until
// ctx is done. A file that fails to parse is logged and the current
// snapshot stays. The directory is watched so editors that replace the file
// by rename are followed.
func Watch(ctx context.Context, repo *Repository, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating knowledge watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching knowledge dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			ds, err := LoadFile(path)
			if err != nil {
				logger.Warn("ignoring knowledge file change", "path", path, "error", err)
				continue
			}
			if err := repo.Swap(ds, OriginFile); err != nil {
				logger.Warn("ignoring knowledge file change", "path", path, "error", err)
				continue
			}
			logger.Info("knowledge reloaded", "path", path, "version", ds.Version)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("knowledge watcher error: %w", err)
		}
	}
}

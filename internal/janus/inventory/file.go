package inventory

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/Janus/internal/janus/types"
)

// Manifest is the on-disk YAML layout read by FileProvider:
//
//	callers:
//	  - id: ext-a
//	    name: Alpha
//	    enabled: true
//	    type: extension
type Manifest struct {
	Callers []types.InstalledCaller `yaml:"callers"`
}

// FileProvider reads the inventory from a YAML manifest on every call. A
// missing or unreadable manifest is an error, never an empty inventory.
type FileProvider struct {
	path   string
	logger *log.Logger
}

func NewFileProvider(path string, logger *log.Logger) *FileProvider {
	return &FileProvider{path: path, logger: logger}
}

func (p *FileProvider) Path() string { return p.path }

func (p *FileProvider) ListInstalled(_ context.Context) ([]types.InstalledCaller, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, p.path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrUnavailable, p.path, err)
	}
	return m.Callers, nil
}

// Watch calls onChange whenever the manifest is written, created, renamed or
// removed, until ctx is done. The parent directory is watched so editors that
// replace the file atomically are still seen.
func (p *FileProvider) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go func() {
		defer w.Close()
		target := filepath.Clean(p.path)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				p.logger.Printf("inventory watch error: %v", err)
			}
		}
	}()

	return nil
}

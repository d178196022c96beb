package definition

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/systmms/secretsync/internal/logging"
	"gopkg.in/yaml.v3"
)

// Store reads and writes secret definition files on disk.
type Store struct {
	logger *logging.Logger
}

// NewStore creates a definition store.
func NewStore(logger *logging.Logger) *Store {
	return &Store{logger: logger}
}

// List returns all definition file paths under sourceRoot, sorted
// lexicographically so repeated runs process secrets in the same order.
func (s *Store) List(sourceRoot string) ([]string, error) {
	info, err := os.Stat(sourceRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sserrors.ConfigError{
				Field:      "sourceRoot",
				Value:      sourceRoot,
				Message:    "source directory not found",
				Suggestion: "Create the directory or point --source-root at your secret definitions",
			}
		}
		return nil, fmt.Errorf("failed to stat source root: %w", err)
	}
	if !info.IsDir() {
		return nil, sserrors.ConfigError{
			Field:   "sourceRoot",
			Value:   sourceRoot,
			Message: "source root is not a directory",
		}
	}

	var paths []string
	err = filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", sourceRoot, err)
	}

	sort.Strings(paths)
	s.logger.Debug("found %d definition file(s) under %s", len(paths), sourceRoot)
	return paths, nil
}

// Read loads and validates the definition at path.
func (s *Store) Read(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sserrors.DefinitionError{Path: path, Message: "cannot read file: " + err.Error()}
	}
	return Parse(path, data)
}

// Write overwrites the definition at path atomically: the document is
// written to a temp file in the same directory and renamed into place,
// so an interrupted process never leaves a partial definition behind.
func (s *Store) Write(path string, def *Definition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition %s: %w", def.Name, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

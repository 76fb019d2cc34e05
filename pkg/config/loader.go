// Package config implements the PopShop Config Loader (spec.md §4.1)
// and Config Watcher (spec.md §4.8): turning one YAML file or a
// directory of YAML files into an ordered rule.List, and keeping that
// list current as the files change on disk.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bradcypert/popshop/pkg/logging"
	"github.com/bradcypert/popshop/pkg/rule"
)

// Loader parses a filesystem path into a rule.List. It performs no I/O
// beyond reading the configured path (spec.md §4.1).
type Loader struct {
	log *slog.Logger
}

// NewLoader creates a Loader. A nil logger defaults to a no-op logger.
func NewLoader(log *slog.Logger) *Loader {
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{log: log}
}

// Load parses path, which may be a regular file or a directory, into a
// rule.List. Directory loads enumerate direct (non-recursive) children
// ending in .yaml/.yml, sorted ascending by filename, for deterministic
// ordering across reloads.
func (l *Loader) Load(path string) (rule.List, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var list rule.List
	if info.IsDir() {
		list, err = l.loadDirectory(path)
	} else {
		list, err = l.loadFile(path)
	}
	if err != nil {
		return nil, err
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyConfiguration, path)
	}
	return list, nil
}

func (l *Loader) loadFile(path string) (rule.List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	list, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

func (l *Loader) loadDirectory(dir string) (rule.List, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var merged rule.List
	for _, name := range names {
		path := filepath.Join(dir, name)
		list, err := l.loadFile(path)
		if err != nil {
			l.log.Warn("skipping unparsable config file", "path", path, "error", err)
			continue
		}
		merged = append(merged, list...)
	}
	return merged, nil
}

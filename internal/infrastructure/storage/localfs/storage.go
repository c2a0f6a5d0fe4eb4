// Package localfs reads raw statute documents from a directory on disk.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source serves plain-text statute files from a single directory.
// Only files with the configured extension are visible.
type Source struct {
	dir string
	ext string
}

func New(dir string) (*Source, error) {
	if dir == "" {
		dir = "./data/statutes"
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat statutes dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("statutes path %q is not a directory", dir)
	}
	return &Source{dir: dir, ext: ".txt"}, nil
}

func (s *Source) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read statutes dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Source) Read(_ context.Context, filename string) (string, error) {
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid statute filename %q", filename)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("read statute file: %w", err)
	}
	return string(data), nil
}

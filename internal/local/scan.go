package local

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/torfstack/sideload/internal/logging"
)

// Scanner lists the regular files below Root that do not match an ignore
// pattern. Patterns use gitignore syntax relative to Root.
type Scanner struct {
	Root   string
	ignore *gitignore.GitIgnore
}

func NewScanner(root string, patterns []string) *Scanner {
	return &Scanner{
		Root:   root,
		ignore: gitignore.CompileIgnoreLines(patterns...),
	}
}

func (s *Scanner) ShouldIgnore(relPath string) bool {
	return s.ignore.MatchesPath(filepath.ToSlash(relPath))
}

// Files returns absolute paths in lexical order.
func (s *Scanner) Files() ([]string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve '%s': %w", s.Root, err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if s.ShouldIgnore(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			logging.Debugf("Skipping non-regular file %s", path)
			return nil
		}
		if s.ShouldIgnore(rel) {
			logging.Debugf("Ignoring %s", path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not scan '%s': %w", root, err)
	}
	return files, nil
}

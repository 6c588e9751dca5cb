// Package attach validates and reads the auxiliary files attached to a query.
package attach

import (
	"errors"
	"os"
	"path/filepath"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
	"github.com/HexSleeves/ponder/internal/llm"
)

// Loader checks and reads auxiliary files. A zero MaxFileSize means no cap.
type Loader struct {
	MaxFileSize int64
}

func NewLoader(maxFileSize int64) *Loader {
	return &Loader{MaxFileSize: maxFileSize}
}

// Check verifies every path names a readable regular file within the size
// cap. It runs before any remote call so bad input aborts early.
func (l *Loader) Check(paths []string) error {
	for _, p := range paths {
		if _, err := l.stat(p); err != nil {
			return err
		}
	}
	return nil
}

// Load reads paths in order. The returned FileContent keeps the path as the
// user typed it; the content is read through any symlinks.
func (l *Loader) Load(paths []string) ([]llm.FileContent, error) {
	out := make([]llm.FileContent, 0, len(paths))
	for _, p := range paths {
		resolved, err := l.stat(p)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, apperrors.IO("read file", p, err)
		}
		out = append(out, llm.FileContent{Path: p, Content: string(data)})
	}
	return out, nil
}

func (l *Loader) stat(path string) (string, error) {
	resolved, err := canonicalPath(path)
	if err != nil {
		return "", apperrors.Validation("file", "resolve %q: %v", path, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperrors.Validation("file", "%q does not exist", path)
		}
		return "", apperrors.IO("stat file", path, err)
	}
	if info.IsDir() {
		return "", apperrors.Validation("file", "%q is a directory", path)
	}
	if l.MaxFileSize > 0 && info.Size() > l.MaxFileSize {
		return "", apperrors.Validation("file", "%q (%d bytes) exceeds max size (%d bytes)", path, info.Size(), l.MaxFileSize)
	}
	return resolved, nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := resolvePathWithSymlinks(abs)
	if err != nil {
		// Best effort fallback when symlink resolution is not possible.
		return filepath.Clean(abs), nil
	}
	return filepath.Clean(resolved), nil
}

func resolvePathWithSymlinks(path string) (string, error) {
	// Resolve the deepest existing ancestor and re-append missing suffix parts.
	var suffix []string
	cur := path
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return filepath.Clean(path), nil
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}

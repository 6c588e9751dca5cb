package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
	"github.com/HexSleeves/ponder/internal/llm"
)

// Ext is the file extension of persisted conversations.
const Ext = ".json"

// FileStore keeps one JSON file per conversation under root.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.root, id+Ext)
}

// Save overwrites any existing file for the id; nothing is merged.
func (s *FileStore) Save(_ context.Context, t llm.Transcript, id string) (string, error) {
	id, payload, err := prepare(t, id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", apperrors.IO("create storage dir", s.root, err)
	}
	p := s.path(id)
	if err := os.WriteFile(p, payload, 0o644); err != nil {
		return "", apperrors.IO("write conversation", p, err)
	}
	return id, nil
}

func (s *FileStore) Load(_ context.Context, id string) (llm.Transcript, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	p := s.path(id)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, apperrors.IO("read conversation", p, err)
	}
	return Decode(data)
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, apperrors.IO("list conversations", s.root, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, Ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, Ext))
	}
	sort.Strings(ids)
	return ids, nil
}

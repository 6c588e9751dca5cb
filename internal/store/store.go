// Package store persists conversation transcripts under short content-derived
// ids. Only user and assistant messages are ever written; system control
// messages are regenerated on every run and would make ids unstable.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HexSleeves/ponder/internal/config"
	apperrors "github.com/HexSleeves/ponder/internal/errors"
	"github.com/HexSleeves/ponder/internal/llm"
)

// IDLength is the number of hex characters in a derived conversation id.
const IDLength = 8

// Store saves and restores transcripts keyed by conversation id.
type Store interface {
	// Save persists the user/assistant messages of t. An empty id derives
	// one from the content. It returns the id used.
	Save(ctx context.Context, t llm.Transcript, id string) (string, error)
	// Load returns the persisted transcript, ErrNotFound or ErrCorruptData.
	Load(ctx context.Context, id string) (llm.Transcript, error)
	// List returns all persisted ids, sorted.
	List(ctx context.Context) ([]string, error)
}

// Open returns the backend named by kind rooted at dir.
func Open(kind, dir string) (Store, error) {
	switch kind {
	case config.StoreFile, "":
		return NewFileStore(dir), nil
	case config.StoreSQLite:
		return NewSQLiteStore(dir), nil
	case config.StoreBolt:
		return NewBoltStore(dir), nil
	default:
		return nil, apperrors.Validation("store", "unknown backend %q", kind)
	}
}

// Filter keeps only user and assistant messages, in order.
func Filter(t llm.Transcript) llm.Transcript {
	out := make(llm.Transcript, 0, len(t))
	for _, m := range t {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

// Encode returns the canonical serialization of t: a JSON array of
// {"role","content"} objects, two-space indented, HTML left unescaped.
func Encode(t llm.Transcript) ([]byte, error) {
	if t == nil {
		t = llm.Transcript{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a payload written by Encode.
func Decode(data []byte) (llm.Transcript, error) {
	var t llm.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptData, err)
	}
	if t == nil {
		t = llm.Transcript{}
	}
	return t, nil
}

// DeriveID returns the first IDLength hex characters of SHA-256(payload).
func DeriveID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:IDLength]
}

// prepare filters and encodes t and resolves the id to save under.
func prepare(t llm.Transcript, id string) (string, []byte, error) {
	payload, err := Encode(Filter(t))
	if err != nil {
		return "", nil, err
	}
	if id == "" {
		return DeriveID(payload), payload, nil
	}
	if err := ValidateID(id); err != nil {
		return "", nil, err
	}
	return id, payload, nil
}

// ValidateID rejects ids that cannot be used as a file name stem.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Validation("conversation id", "must not be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." || strings.ContainsRune(id, 0) {
		return apperrors.Validation("conversation id", "%q is not a valid id", id)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrNotFound, id)
}

// Summary describes a stored conversation for listings.
type Summary struct {
	ID        string
	Messages  int
	FirstUser string
}

// Summarize loads every conversation in s and reports its size and opening
// user message. Unreadable conversations are reported with Messages = -1.
func Summarize(ctx context.Context, s Store) ([]Summary, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		sum := Summary{ID: id}
		t, err := s.Load(ctx, id)
		if err != nil {
			sum.Messages = -1
			out = append(out, sum)
			continue
		}
		sum.Messages = len(t)
		for _, m := range t {
			if m.Role == llm.RoleUser {
				sum.FirstUser = m.Content
				break
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

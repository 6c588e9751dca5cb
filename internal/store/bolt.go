package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
	"github.com/HexSleeves/ponder/internal/llm"
)

// BoltFile is the BoltDB file name inside the storage directory.
const BoltFile = "conversations.bolt"

var conversationsBucket = []byte("conversations")

// BoltStore keeps conversations in a single BoltDB bucket keyed by id.
type BoltStore struct {
	dir string
}

func NewBoltStore(dir string) *BoltStore {
	return &BoltStore{dir: dir}
}

func (s *BoltStore) path() string {
	return filepath.Join(s.dir, BoltFile)
}

func (s *BoltStore) open(readOnly bool) (*bolt.DB, error) {
	p := s.path()
	if readOnly {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	} else if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, apperrors.IO("create storage dir", s.dir, err)
	}
	db, err := bolt.Open(p, 0o600, &bolt.Options{Timeout: 2 * time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, apperrors.IO("open database", p, err)
	}
	return db, nil
}

func (s *BoltStore) Save(_ context.Context, t llm.Transcript, id string) (string, error) {
	id, payload, err := prepare(t, id)
	if err != nil {
		return "", err
	}
	db, err := s.open(false)
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(conversationsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), payload)
	})
	if err != nil {
		return "", apperrors.IO("save conversation", id, err)
	}
	return id, nil
}

func (s *BoltStore) Load(_ context.Context, id string) (llm.Transcript, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	db, err := s.open(true)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, notFound(id)
	}
	defer func() { _ = db.Close() }()

	var payload []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(id)); v != nil {
			// v is only valid inside the transaction.
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.IO("load conversation", id, err)
	}
	if payload == nil {
		return nil, notFound(id)
	}
	return Decode(payload)
}

// List returns ids in key order, which BoltDB keeps sorted.
func (s *BoltStore) List(_ context.Context) ([]string, error) {
	db, err := s.open(true)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return []string{}, nil
	}
	defer func() { _ = db.Close() }()

	ids := []string{}
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.IO("list conversations", s.path(), err)
	}
	return ids, nil
}

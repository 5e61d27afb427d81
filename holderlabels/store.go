package holderlabels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"

	"github.com/guildworks/toolledger/ledger"
)

// MaxLabelLength is the maximum length of a label in characters.
const MaxLabelLength = 32

var labelsBucket = []byte("labels")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrStoreClosed is returned when the store is used after Close.
	ErrStoreClosed = errors.New("label store is closed")

	// ErrEmptyPath is returned when Open is called without a path.
	ErrEmptyPath = errors.New("label store path is required")

	// ErrEmptyLabel is returned when a blank label is set.
	ErrEmptyLabel = errors.New("label must not be empty")

	// ErrLabelTooLong is returned when a label exceeds MaxLabelLength characters.
	ErrLabelTooLong = fmt.Errorf("label must not exceed %d characters", MaxLabelLength)
)

// Record is one stored label.
type Record struct {
	HolderID  ledger.HolderID `json:"holder_id"`
	Label     string          `json:"label"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is a bbolt-backed label store. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	now    func() time.Time
	closed bool
}

// Open opens (or creates) the label file at path.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrEmptyPath
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure label dir: %w", err)
	}

	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open label db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(labelsBucket)
		return createErr
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure label bucket: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying file. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.db.Close()
}

// PreferredLabel returns the label of holderID, or "" if none is set.
func (s *Store) PreferredLabel(ctx context.Context, holderID ledger.HolderID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var label string

	err := s.view(func(bucket *bolt.Bucket) error {
		raw := bucket.Get([]byte(holderID))
		if raw == nil {
			return nil
		}

		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode label of %s: %w", holderID, err)
		}

		label = record.Label

		return nil
	})

	return label, err
}

// SetLabel stores the label of holderID. The label is trimmed and must be 1 to MaxLabelLength characters.
func (s *Store) SetLabel(ctx context.Context, holderID ledger.HolderID, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.TrimSpace(holderID) == "" {
		return ledger.ErrInvalidHolder
	}

	label = strings.TrimSpace(label)

	switch {
	case label == "":
		return ErrEmptyLabel
	case utf8.RuneCountInString(label) > MaxLabelLength:
		return ErrLabelTooLong
	}

	raw, err := json.Marshal(Record{HolderID: holderID, Label: label, UpdatedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode label of %s: %w", holderID, err)
	}

	return s.update(func(bucket *bolt.Bucket) error {
		return bucket.Put([]byte(holderID), raw)
	})
}

// DeleteLabel removes the label of holderID and reports whether there was one.
func (s *Store) DeleteLabel(ctx context.Context, holderID ledger.HolderID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var existed bool

	err := s.update(func(bucket *bolt.Bucket) error {
		key := []byte(holderID)
		existed = bucket.Get(key) != nil

		if !existed {
			return nil
		}

		return bucket.Delete(key)
	})

	return existed, err
}

// All returns every stored label ordered by holder id.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0)

	err := s.view(func(bucket *bolt.Bucket) error {
		return bucket.ForEach(func(_, raw []byte) error {
			var record Record
			if err := json.Unmarshal(raw, &record); err != nil {
				return err
			}

			records = append(records, record)

			return nil
		})
	})

	return records, err
}

func (s *Store) view(fn func(bucket *bolt.Bucket) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	return s.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(labelsBucket))
	})
}

func (s *Store) update(fn func(bucket *bolt.Bucket) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(labelsBucket))
	})
}

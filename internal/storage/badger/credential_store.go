package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/interfaces"
)

const credentialKeyPrefix = "cred:"

// CredentialStore implements interfaces.CredentialStore on Badger using
// native entry TTLs, so expired keys simply vanish for readers.
type CredentialStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCredentialStore creates a new Badger-backed credential store
func NewCredentialStore(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStore {
	return &CredentialStore{
		db:     db,
		logger: logger,
	}
}

func (s *CredentialStore) key(key string) []byte {
	return []byte(credentialKeyPrefix + key)
}

// Get retrieves a value by key
func (s *CredentialStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.DB().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return "", interfaces.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set stores a value with the given TTL (zero TTL means no expiry)
func (s *CredentialStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry(s.key(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (s *CredentialStore) Delete(ctx context.Context, key string) error {
	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/g2i/hub/internal/interfaces"
)

// queueMessage is the internal structure stored in Badger
type queueMessage struct {
	ID           string                `json:"id"`
	Body         interfaces.JobMessage `json:"body"`
	EnqueuedAt   time.Time             `json:"enqueued_at"`
	VisibleAt    time.Time             `json:"visible_at"`
	ReceiveCount int                   `json:"receive_count"`
}

// Manager implements a persistent queue on BadgerDB. Message data lives under
// a data key; a visibility index keyed by timestamp allows workers to scan
// for ready messages in order.
type Manager struct {
	db                *badgerdb.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
}

// NewManager creates a Badger-backed queue manager
func NewManager(db *badgerdb.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (*Manager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

func (m *Manager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *Manager) indexKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *Manager) indexPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
}

func (m *Manager) dedupKey(dedupID string) []byte {
	return []byte(fmt.Sprintf("queue:%s:dedup:%s", m.queueName, dedupID))
}

func (m *Manager) parseIndexKey(key []byte) (time.Time, string, error) {
	rest := strings.TrimPrefix(string(key), string(m.indexPrefix()))
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index timestamp: %w", err)
	}
	return time.Unix(0, nanos), parts[1], nil
}

// Enqueue adds a message to the queue, immediately visible. A message whose
// DedupID is already pending is silently dropped.
func (m *Manager) Enqueue(ctx context.Context, msg interfaces.JobMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	qMsg := queueMessage{
		ID:         msg.ID,
		Body:       msg,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(),
	}

	data, err := json.Marshal(qMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return m.db.Update(func(txn *badgerdb.Txn) error {
		if msg.DedupID != "" {
			_, err := txn.Get(m.dedupKey(msg.DedupID))
			if err == nil {
				// Duplicate in flight; the earlier message carries the work
				return nil
			}
			if !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
			dedupEntry := badgerdb.NewEntry(m.dedupKey(msg.DedupID), []byte(msg.ID)).
				WithTTL(m.visibilityTimeout * time.Duration(m.maxReceive+1))
			if err := txn.SetEntry(dedupEntry); err != nil {
				return err
			}
		}

		if err := txn.Set(m.msgKey(qMsg.ID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(qMsg.VisibleAt, qMsg.ID), []byte{})
	})
}

// Receive pulls the next visible message, hiding it for the visibility
// timeout. The returned delete function removes the message permanently.
// Messages received more than maxReceive times are dropped.
func (m *Manager) Receive(ctx context.Context) (*interfaces.JobMessage, func() error, error) {
	var qMsg queueMessage
	found := false

	err := m.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		prefix := m.indexPrefix()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Index keys sort by timestamp; nothing later is ready either
				break
			}

			item, err := txn.Get(m.msgKey(id))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				// Orphaned index entry
				_ = txn.Delete(key)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &qMsg)
			}); err != nil {
				return err
			}

			qMsg.ReceiveCount++
			if qMsg.ReceiveCount > m.maxReceive {
				// Poison message - drop it entirely
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(m.msgKey(id)); err != nil {
					return err
				}
				if qMsg.Body.DedupID != "" {
					_ = txn.Delete(m.dedupKey(qMsg.Body.DedupID))
				}
				continue
			}

			// Move the visibility index forward
			qMsg.VisibleAt = now.Add(m.visibilityTimeout)
			data, err := json.Marshal(qMsg)
			if err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(m.indexKey(qMsg.VisibleAt, id), []byte{}); err != nil {
				return err
			}
			if err := txn.Set(m.msgKey(id), data); err != nil {
				return err
			}

			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to receive message: %w", err)
	}
	if !found {
		return nil, nil, interfaces.ErrNoMessage
	}

	deleteFn := func() error {
		return m.db.Update(func(txn *badgerdb.Txn) error {
			if err := txn.Delete(m.indexKey(qMsg.VisibleAt, qMsg.ID)); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
			if err := txn.Delete(m.msgKey(qMsg.ID)); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
			if qMsg.Body.DedupID != "" {
				if err := txn.Delete(m.dedupKey(qMsg.Body.DedupID)); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
					return err
				}
			}
			return nil
		})
	}

	body := qMsg.Body
	return &body, deleteFn, nil
}

// Extend pushes a message's visibility deadline forward for long-running work
func (m *Manager) Extend(ctx context.Context, id string, d time.Duration) error {
	return m.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(m.msgKey(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("message %s not found", id)
		}
		if err != nil {
			return err
		}

		var qMsg queueMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &qMsg)
		}); err != nil {
			return err
		}

		oldIndex := m.indexKey(qMsg.VisibleAt, qMsg.ID)
		qMsg.VisibleAt = time.Now().Add(d)

		data, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Delete(oldIndex); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(m.indexKey(qMsg.VisibleAt, qMsg.ID), []byte{}); err != nil {
			return err
		}
		return txn.Set(m.msgKey(qMsg.ID), data)
	})
}

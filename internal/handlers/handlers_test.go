package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/g2i/hub/internal/interfaces"
)

// fakeCredentialStore is an in-memory CredentialStore for handler tests
type fakeCredentialStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{values: make(map[string]string)}
}

func (f *fakeCredentialStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeCredentialStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeCredentialStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

// fakeQueue records enqueued messages
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []interfaces.JobMessage
}

func (f *fakeQueue) Enqueue(ctx context.Context, msg interfaces.JobMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, msg)
	return nil
}

func (f *fakeQueue) Receive(ctx context.Context) (*interfaces.JobMessage, func() error, error) {
	return nil, nil, interfaces.ErrNoMessage
}

func (f *fakeQueue) Extend(ctx context.Context, id string, d time.Duration) error {
	return nil
}

func (f *fakeQueue) messages() []interfaces.JobMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.JobMessage(nil), f.enqueued...)
}

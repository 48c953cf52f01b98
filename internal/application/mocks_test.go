package application_test

import (
	"context"
	"errors"
	"sync"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

// --- Mock implementations ---

// memoryStore is an in-memory driven.SessionStore.
type memoryStore struct {
	mu       sync.Mutex
	creds    model.SessionCredentials
	getErr   error
	setErr   error
	setCalls int
}

func (m *memoryStore) Get(_ context.Context) (model.SessionCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return model.SessionCredentials{}, m.getErr
	}
	return m.creds, nil
}

func (m *memoryStore) SetIdentifiers(_ context.Context, ids model.Identifiers) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	if !ids.Complete() {
		return driven.ErrIncompleteIdentifiers
	}
	m.creds.Identifiers = ids
	return nil
}

func (m *memoryStore) SetSettings(_ context.Context, settings model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.creds.Settings = settings
	return nil
}

func (m *memoryStore) snapshot() model.SessionCredentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}

type writeCall struct {
	Target model.Target
	Status model.Status
}

// mockStatusClient records calls and returns configurable results.
type mockStatusClient struct {
	mu        sync.Mutex
	reads     []model.Target
	writes    []writeCall
	readFunc  func(ctx context.Context, call int) (model.Status, error)
	writeFunc func(ctx context.Context, call int) error
}

func (m *mockStatusClient) ReadStatus(ctx context.Context, target model.Target) (model.Status, error) {
	m.mu.Lock()
	m.reads = append(m.reads, target)
	call := len(m.reads)
	fn := m.readFunc
	m.mu.Unlock()

	if fn == nil {
		return model.StatusOnline, nil
	}
	return fn(ctx, call)
}

func (m *mockStatusClient) WriteStatus(ctx context.Context, target model.Target, status model.Status) error {
	m.mu.Lock()
	m.writes = append(m.writes, writeCall{Target: target, Status: status})
	call := len(m.writes)
	fn := m.writeFunc
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, call)
}

func (m *mockStatusClient) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reads)
}

func (m *mockStatusClient) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

var errRemote = errors.Join(driven.ErrRemoteCall, errors.New("connection refused"))

// readyCreds is a record that can drive a tick.
func readyCreds(desired model.Status) model.SessionCredentials {
	return model.SessionCredentials{
		Identifiers: model.Identifiers{AuthToken: "tok1", UserID: "u1", CSRFToken: "csrf1"},
		Settings:    model.Settings{Domain: "chat.example.com", DesiredStatus: desired},
	}
}

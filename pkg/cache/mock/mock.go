// Package mock provides a scriptable cache.Layer for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"intranet-portal/pkg/cache"
)

// MockLayer is a cache.Layer whose behaviour is set through function hooks.
// Unset hooks miss on Get and succeed otherwise. Calls are counted per
// operation and the keys passed to Set are kept in order.
type MockLayer struct {
	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	NameFunc   func() string
	CloseFunc  func() error

	mu      sync.Mutex
	calls   map[string]int
	setKeys []string
}

func (m *MockLayer) record(op, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
	if op == "set" {
		m.setKeys = append(m.setKeys, key)
	}
}

func (m *MockLayer) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockLayer) Get(ctx context.Context, key string) ([]byte, error) {
	m.record("get", key)
	if m.GetFunc == nil {
		return nil, cache.ErrKeyNotFound
	}
	return m.GetFunc(ctx, key)
}

func (m *MockLayer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.record("set", key)
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, ttl)
}

func (m *MockLayer) Delete(ctx context.Context, key string) error {
	m.record("delete", key)
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, key)
}

func (m *MockLayer) Name() string {
	if m.NameFunc == nil {
		return "mock"
	}
	return m.NameFunc()
}

func (m *MockLayer) Close() error {
	m.record("close", "")
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

func (m *MockLayer) GetCalls() int    { return m.count("get") }
func (m *MockLayer) SetCalls() int    { return m.count("set") }
func (m *MockLayer) DeleteCalls() int { return m.count("delete") }
func (m *MockLayer) CloseCalls() int  { return m.count("close") }

// SetKeys returns the keys passed to Set so far.
func (m *MockLayer) SetKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.setKeys...)
}

// NewMockLayer creates a MockLayer named name that misses on every Get.
func NewMockLayer(name string) *MockLayer {
	return &MockLayer{NameFunc: func() string { return name }}
}

// NewFailingLayer creates a MockLayer whose every operation returns err.
func NewFailingLayer(name string, err error) *MockLayer {
	m := NewMockLayer(name)
	m.GetFunc = func(context.Context, string) ([]byte, error) { return nil, err }
	m.SetFunc = func(context.Context, string, []byte, time.Duration) error { return err }
	m.DeleteFunc = func(context.Context, string) error { return err }
	return m
}

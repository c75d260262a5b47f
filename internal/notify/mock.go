package notify

import (
	"context"
	"fmt"
	"sync"
)

// MockNotifier implements Notifier for testing. It records sent alerts and
// can be told to fail.
type MockNotifier struct {
	mu     sync.Mutex
	sent   []Alert
	closed bool
	err    error
}

// NewMockNotifier creates a MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// FailWith makes every subsequent Send return err.
func (m *MockNotifier) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Send records the alert.
func (m *MockNotifier) Send(ctx context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock notifier: already closed")
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, alert)
	return nil
}

// Close marks the notifier closed.
func (m *MockNotifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of the recorded alerts.
func (m *MockNotifier) Sent() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.sent))
	copy(out, m.sent)
	return out
}

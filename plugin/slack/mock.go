package slack

import (
	"context"
	"sync"
)

// MockSender records posted messages for tests.
type MockSender struct {
	mu        sync.Mutex
	Messages  []Message
	Responses []string
	FailNext  error
}

// NewMockSender creates a mock sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// PostMessage records the message.
func (m *MockSender) PostMessage(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// PostToResponseURL records the response text.
func (m *MockSender) PostToResponseURL(ctx context.Context, responseURL, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.Responses = append(m.Responses, text)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockSender) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.Messages))
	copy(out, m.Messages)
	return out
}

// Ensure MockSender implements Sender
var _ Sender = (*MockSender)(nil)

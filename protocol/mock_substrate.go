package protocol

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Delivery is one message accepted by MockDistributor.
type Delivery struct {
	Channel string
	Message *PubsubMessage
}

// MockDistributor records published messages. It can be made to fail by
// setting Err.
type MockDistributor struct {
	mu         sync.Mutex
	deliveries []Delivery

	Err error
}

// NewMockDistributor creates a distributor that accepts every message.
func NewMockDistributor() *MockDistributor {
	return &MockDistributor{}
}

// Publish implements Distributor.
func (m *MockDistributor) Publish(ctx context.Context, channel string, msg *PubsubMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.deliveries = append(m.deliveries, Delivery{Channel: channel, Message: msg})
	return nil
}

// Deliveries returns a copy of everything published so far.
func (m *MockDistributor) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deliveries)
}

// Grant is one credential issued by MockAccessGranter.
type Grant struct {
	Channels   []string
	TTLMinutes int
	Credential string
}

// MockAccessGranter issues predictable credentials and records each grant.
type MockAccessGranter struct {
	mu     sync.Mutex
	grants []Grant

	Err error
}

// NewMockAccessGranter creates a granter that succeeds on every call.
func NewMockAccessGranter() *MockAccessGranter {
	return &MockAccessGranter{}
}

// GrantReadCredential implements AccessGranter.
func (m *MockAccessGranter) GrantReadCredential(ctx context.Context, channels []string, ttlMinutes int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	credential := fmt.Sprintf("credential-%d", len(m.grants)+1)
	m.grants = append(m.grants, Grant{
		Channels:   slices.Clone(channels),
		TTLMinutes: ttlMinutes,
		Credential: credential,
	})
	return credential, nil
}

// Grants returns a copy of every grant issued so far.
func (m *MockAccessGranter) Grants() []Grant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.grants)
}

// Package mock provides a test double for the memory package.
package mock

import (
	"context"
	"sync"

	"github.com/voxhive/voxhive/pkg/provider/memory"
	"github.com/voxhive/voxhive/pkg/types"
)

// SaveCall records a single Save invocation.
type SaveCall struct {
	DeviceID   string
	Transcript []types.Message
}

// Store is a mock implementation of memory.Provider.
type Store struct {
	mu sync.Mutex

	// QueryResult is returned by every Query call.
	QueryResult string

	// QueryErr, if non-nil, is returned by Query.
	QueryErr error

	// SaveErr, if non-nil, is returned by Save.
	SaveErr error

	// SaveCalls records every Save invocation in order.
	SaveCalls []SaveCall
}

var _ memory.Provider = (*Store)(nil)

// Save implements memory.Provider.
func (s *Store) Save(_ context.Context, deviceID string, transcript []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls = append(s.SaveCalls, SaveCall{DeviceID: deviceID, Transcript: transcript})
	return s.SaveErr
}

// Query implements memory.Provider.
func (s *Store) Query(context.Context, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.QueryResult, s.QueryErr
}

// SaveCount returns the number of Save invocations so far.
func (s *Store) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SaveCalls)
}

// Close implements memory.Provider.
func (s *Store) Close() error { return nil }

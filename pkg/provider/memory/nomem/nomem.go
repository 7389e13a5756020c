// Package nomem provides the disabled-memory provider: nothing is saved and
// queries return nothing.
package nomem

import (
	"context"

	"github.com/voxhive/voxhive/pkg/provider/memory"
	"github.com/voxhive/voxhive/pkg/types"
)

// Store is the no-op memory provider.
type Store struct{}

var _ memory.Provider = (*Store)(nil)

// New returns the no-op store.
func New() *Store { return &Store{} }

// Save implements memory.Provider.
func (*Store) Save(context.Context, string, []types.Message) error { return nil }

// Query implements memory.Provider.
func (*Store) Query(context.Context, string, string) (string, error) { return "", nil }

// Close implements memory.Provider.
func (*Store) Close() error { return nil }

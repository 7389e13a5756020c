// Package nointent provides the pass-through intent provider: every
// utterance is treated as a normal chat turn. Used when tool calling is
// delegated to the LLM itself (function-call mode) or disabled entirely.
package nointent

import (
	"context"

	"github.com/voxhive/voxhive/pkg/provider/intent"
	"github.com/voxhive/voxhive/pkg/types"
)

// Provider is the no-op intent provider.
type Provider struct{}

var _ intent.Provider = (*Provider)(nil)

// New returns the pass-through provider.
func New() *Provider { return &Provider{} }

// Detect implements intent.Provider.
func (*Provider) Detect(context.Context, []types.Message, string, []string) (intent.Result, error) {
	return intent.Result{Action: intent.ActionContinue}, nil
}

// Package network implements the subset of the CDP Network domain this
// module depends on: event enablement, trimmed from chrome-vision's
// full generated Network domain to exactly the command spec.md names.
package network

import (
	"context"

	"github.com/daabr/termweb-core/pkg/devtools"
)

// Enable contains the parameters for the CDP command `enable`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Network/#method-enable
type Enable struct{}

// NewEnable constructs a new Enable struct instance.
func NewEnable() *Enable { return &Enable{} }

// Do sends the Enable CDP command, turning on Network domain events
// (request/response lifecycle, used by this client only to observe the
// loading state that accompanies navigation).
func (e *Enable) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	_, err := sender.SendCommand(ctx, "Network.enable", nil, sessionID)
	return err
}

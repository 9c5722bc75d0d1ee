// Package emulation implements the subset of the CDP Emulation domain
// this module depends on: device metrics override, trimmed from
// chrome-vision's full generated Emulation domain to exactly the
// command spec.md names.
package emulation

import (
	"context"
	"encoding/json"

	"github.com/daabr/termweb-core/pkg/devtools"
)

// SetDeviceMetricsOverride contains the parameters for the CDP command
// `setDeviceMetricsOverride`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Emulation/#method-setDeviceMetricsOverride
type SetDeviceMetricsOverride struct {
	Width             int64   `json:"width"`
	Height            int64   `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"`
	Mobile            bool    `json:"mobile"`
}

// NewSetDeviceMetricsOverride constructs a new SetDeviceMetricsOverride
// struct instance. Width/height of 0 disables the override.
func NewSetDeviceMetricsOverride(width, height int64) *SetDeviceMetricsOverride {
	return &SetDeviceMetricsOverride{Width: width, Height: height}
}

// SetDeviceScaleFactor overrides the reported device pixel ratio.
func (s *SetDeviceMetricsOverride) SetDeviceScaleFactor(f float64) *SetDeviceMetricsOverride {
	s.DeviceScaleFactor = f
	return s
}

// Do sends the SetDeviceMetricsOverride CDP command.
func (s *SetDeviceMetricsOverride) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Emulation.setDeviceMetricsOverride", b, sessionID)
	return err
}

// Package target implements the subset of the CDP Target domain this
// module depends on: target discovery and session attach/activate,
// trimmed from chrome-vision's full generated Target domain to exactly
// the commands spec.md names.
package target

import (
	"context"
	"encoding/json"

	"github.com/daabr/termweb-core/pkg/devtools"
)

// Info describes one attachable CDP target, as returned by GetTargets.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#type-TargetInfo
type Info struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
}

// GetTargets contains the parameters for the CDP command `getTargets`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-getTargets
type GetTargets struct{}

// NewGetTargets constructs a new GetTargets struct instance.
func NewGetTargets() *GetTargets { return &GetTargets{} }

// GetTargetsResult is the browser's response to GetTargets.
type GetTargetsResult struct {
	TargetInfos []Info `json:"targetInfos"`
}

// Do sends the GetTargets CDP command and returns every known target.
func (t *GetTargets) Do(ctx context.Context, sender devtools.Sender) (*GetTargetsResult, error) {
	raw, err := sender.SendCommand(ctx, "Target.getTargets", nil, "")
	if err != nil {
		return nil, err
	}
	var result GetTargetsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FirstPage returns the first target whose Type is "page", or ok=false.
func (r *GetTargetsResult) FirstPage() (Info, bool) {
	for _, info := range r.TargetInfos {
		if info.Type == "page" {
			return info, true
		}
	}
	return Info{}, false
}

// AttachToTarget contains the parameters for the CDP command
// `attachToTarget`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-attachToTarget
type AttachToTarget struct {
	TargetID string `json:"targetId"`
	Flatten  bool   `json:"flatten"`
}

// NewAttachToTarget constructs a new AttachToTarget struct instance with
// flatten mode enabled, as every session this client manages requires.
func NewAttachToTarget(targetID string) *AttachToTarget {
	return &AttachToTarget{TargetID: targetID, Flatten: true}
}

// AttachToTargetResult is the browser's response to AttachToTarget.
type AttachToTargetResult struct {
	SessionID string `json:"sessionId"`
}

// Do sends the AttachToTarget CDP command and returns the resulting
// sessionId to prefix future page-level commands with.
func (t *AttachToTarget) Do(ctx context.Context, sender devtools.Sender) (*AttachToTargetResult, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	raw, err := sender.SendCommand(ctx, "Target.attachToTarget", b, "")
	if err != nil {
		return nil, err
	}
	var result AttachToTargetResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ActivateTarget contains the parameters for the CDP command
// `activateTarget`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-activateTarget
type ActivateTarget struct {
	TargetID string `json:"targetId"`
}

// NewActivateTarget constructs a new ActivateTarget struct instance.
func NewActivateTarget(targetID string) *ActivateTarget {
	return &ActivateTarget{TargetID: targetID}
}

// Do sends the ActivateTarget CDP command, focusing the target.
func (t *ActivateTarget) Do(ctx context.Context, sender devtools.Sender) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Target.activateTarget", b, "")
	return err
}

// SetDiscoverTargets contains the parameters for the CDP command
// `setDiscoverTargets`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-setDiscoverTargets
type SetDiscoverTargets struct {
	Discover bool `json:"discover"`
}

// NewSetDiscoverTargets constructs a new SetDiscoverTargets struct instance.
func NewSetDiscoverTargets(discover bool) *SetDiscoverTargets {
	return &SetDiscoverTargets{Discover: discover}
}

// Do sends the SetDiscoverTargets CDP command, enabling
// Target.targetCreated / Target.targetInfoChanged events.
func (t *SetDiscoverTargets) Do(ctx context.Context, sender devtools.Sender) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Target.setDiscoverTargets", b, "")
	return err
}

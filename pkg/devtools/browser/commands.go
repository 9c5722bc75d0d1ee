// Package browser implements the subset of the CDP Browser domain this
// module depends on: download behavior and permission grants, trimmed
// from chrome-vision's full generated Browser domain to exactly the
// commands spec.md names. These commands are always issued over the
// browser-level channel (never a page session), same as
// pkg/devtools/target.
package browser

import (
	"context"
	"encoding/json"

	"github.com/daabr/termweb-core/pkg/devtools"
)

// SetDownloadBehavior contains the parameters for the CDP command
// `setDownloadBehavior`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Browser/#method-setDownloadBehavior
type SetDownloadBehavior struct {
	Behavior      string `json:"behavior"`
	DownloadPath  string `json:"downloadPath,omitempty"`
	EventsEnabled bool   `json:"eventsEnabled,omitempty"`
}

// NewSetDownloadBehavior constructs a new SetDownloadBehavior struct
// instance. behavior is "allow", "allowAndName", "deny", or "default".
func NewSetDownloadBehavior(behavior string) *SetDownloadBehavior {
	return &SetDownloadBehavior{Behavior: behavior}
}

// SetDownloadPath sets the downloadPath parameter, required when
// behavior is "allow" or "allowAndName".
func (s *SetDownloadBehavior) SetDownloadPath(path string) *SetDownloadBehavior {
	s.DownloadPath = path
	return s
}

// SetEventsEnabled toggles Browser.downloadWillBegin / downloadProgress
// events.
func (s *SetDownloadBehavior) SetEventsEnabled(enabled bool) *SetDownloadBehavior {
	s.EventsEnabled = enabled
	return s
}

// Do sends the SetDownloadBehavior CDP command.
func (s *SetDownloadBehavior) Do(ctx context.Context, sender devtools.Sender) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Browser.setDownloadBehavior", b, "")
	return err
}

// GrantPermissions contains the parameters for the CDP command
// `grantPermissions`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Browser/#method-grantPermissions
type GrantPermissions struct {
	Permissions []string `json:"permissions"`
	Origin      string   `json:"origin,omitempty"`
}

// NewGrantPermissions constructs a new GrantPermissions struct instance.
func NewGrantPermissions(permissions ...string) *GrantPermissions {
	return &GrantPermissions{Permissions: permissions}
}

// SetOrigin scopes the grant to a single origin; all origins if unset.
func (g *GrantPermissions) SetOrigin(origin string) *GrantPermissions {
	g.Origin = origin
	return g
}

// Do sends the GrantPermissions CDP command.
func (g *GrantPermissions) Do(ctx context.Context, sender devtools.Sender) error {
	b, err := json.Marshal(g)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Browser.grantPermissions", b, "")
	return err
}

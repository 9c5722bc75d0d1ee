// Package page implements the subset of the CDP Page domain this module
// depends on: event enablement, script injection, screencast control,
// navigation, and file-chooser interception — trimmed from
// chrome-vision's full generated Page domain to exactly the commands
// spec.md names.
package page

import (
	"context"
	"encoding/json"

	"github.com/daabr/termweb-core/pkg/devtools"
)

// Enable contains the parameters for the CDP command `enable`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-enable
type Enable struct{}

// NewEnable constructs a new Enable struct instance.
func NewEnable() *Enable { return &Enable{} }

// Do sends the Enable CDP command, turning on Page domain events.
func (e *Enable) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	_, err := sender.SendCommand(ctx, "Page.enable", nil, sessionID)
	return err
}

// AddScriptToEvaluateOnNewDocument contains the parameters for the CDP
// command `addScriptToEvaluateOnNewDocument`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-addScriptToEvaluateOnNewDocument
type AddScriptToEvaluateOnNewDocument struct {
	Source string `json:"source"`
}

// NewAddScriptToEvaluateOnNewDocument constructs a new
// AddScriptToEvaluateOnNewDocument struct instance.
func NewAddScriptToEvaluateOnNewDocument(source string) *AddScriptToEvaluateOnNewDocument {
	return &AddScriptToEvaluateOnNewDocument{Source: source}
}

// Do sends the AddScriptToEvaluateOnNewDocument CDP command, injecting
// source into every document the page subsequently loads.
func (a *AddScriptToEvaluateOnNewDocument) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Page.addScriptToEvaluateOnNewDocument", b, sessionID)
	return err
}

// StartScreencast contains the parameters for the CDP command
// `startScreencast`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-startScreencast
type StartScreencast struct {
	Format        string `json:"format,omitempty"`
	Quality       int    `json:"quality,omitempty"`
	MaxWidth      int    `json:"maxWidth,omitempty"`
	MaxHeight     int    `json:"maxHeight,omitempty"`
	EveryNthFrame int    `json:"everyNthFrame,omitempty"`
}

// NewStartScreencast constructs a new StartScreencast struct instance
// with reasonable defaults (JPEG, quality 80, one frame captured per
// rendered frame).
func NewStartScreencast() *StartScreencast {
	return &StartScreencast{Format: "jpeg", Quality: 80, EveryNthFrame: 1}
}

// SetMaxDimensions sets the maximum frame dimensions Chromium will scale
// screencast frames down to.
func (s *StartScreencast) SetMaxDimensions(width, height int) *StartScreencast {
	s.MaxWidth, s.MaxHeight = width, height
	return s
}

// Do sends the StartScreencast CDP command.
func (s *StartScreencast) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Page.startScreencast", b, sessionID)
	return err
}

// StopScreencast contains the parameters for the CDP command
// `stopScreencast`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-stopScreencast
type StopScreencast struct{}

// NewStopScreencast constructs a new StopScreencast struct instance.
func NewStopScreencast() *StopScreencast { return &StopScreencast{} }

// Do sends the StopScreencast CDP command.
func (s *StopScreencast) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	_, err := sender.SendCommand(ctx, "Page.stopScreencast", nil, sessionID)
	return err
}

// Navigate contains the parameters for the CDP command `navigate`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-navigate
type Navigate struct {
	URL string `json:"url"`
}

// NewNavigate constructs a new Navigate struct instance.
func NewNavigate(url string) *Navigate { return &Navigate{URL: url} }

// Do sends the Navigate CDP command.
func (n *Navigate) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Page.navigate", b, sessionID)
	return err
}

// Reload contains the parameters for the CDP command `reload`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-reload
type Reload struct{}

// NewReload constructs a new Reload struct instance.
func NewReload() *Reload { return &Reload{} }

// Do sends the Reload CDP command.
func (r *Reload) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	_, err := sender.SendCommand(ctx, "Page.reload", nil, sessionID)
	return err
}

// NavigationEntry is one entry in the session's navigation history.
type NavigationEntry struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// GetNavigationHistory contains the parameters for the CDP command
// `getNavigationHistory`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-getNavigationHistory
type GetNavigationHistory struct{}

// NewGetNavigationHistory constructs a new GetNavigationHistory struct
// instance.
func NewGetNavigationHistory() *GetNavigationHistory { return &GetNavigationHistory{} }

// GetNavigationHistoryResult is the browser's response to
// GetNavigationHistory.
type GetNavigationHistoryResult struct {
	CurrentIndex int64             `json:"currentIndex"`
	Entries      []NavigationEntry `json:"entries"`
}

// Do sends the GetNavigationHistory CDP command.
func (g *GetNavigationHistory) Do(ctx context.Context, sender devtools.Sender, sessionID string) (*GetNavigationHistoryResult, error) {
	raw, err := sender.SendCommand(ctx, "Page.getNavigationHistory", nil, sessionID)
	if err != nil {
		return nil, err
	}
	var result GetNavigationHistoryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// NavigateToHistoryEntry contains the parameters for the CDP command
// `navigateToHistoryEntry`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-navigateToHistoryEntry
type NavigateToHistoryEntry struct {
	EntryID int64 `json:"entryId"`
}

// NewNavigateToHistoryEntry constructs a new NavigateToHistoryEntry struct
// instance.
func NewNavigateToHistoryEntry(entryID int64) *NavigateToHistoryEntry {
	return &NavigateToHistoryEntry{EntryID: entryID}
}

// Do sends the NavigateToHistoryEntry CDP command.
func (n *NavigateToHistoryEntry) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Page.navigateToHistoryEntry", b, sessionID)
	return err
}

// StopLoading contains the parameters for the CDP command `stopLoading`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-stopLoading
type StopLoading struct{}

// NewStopLoading constructs a new StopLoading struct instance.
func NewStopLoading() *StopLoading { return &StopLoading{} }

// Do sends the StopLoading CDP command.
func (s *StopLoading) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	_, err := sender.SendCommand(ctx, "Page.stopLoading", nil, sessionID)
	return err
}

// SetInterceptFileChooserDialog contains the parameters for the CDP
// command `setInterceptFileChooserDialog`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-setInterceptFileChooserDialog
type SetInterceptFileChooserDialog struct {
	Enabled bool `json:"enabled"`
}

// NewSetInterceptFileChooserDialog constructs a new
// SetInterceptFileChooserDialog struct instance.
func NewSetInterceptFileChooserDialog(enabled bool) *SetInterceptFileChooserDialog {
	return &SetInterceptFileChooserDialog{Enabled: enabled}
}

// Do sends the SetInterceptFileChooserDialog CDP command.
func (s *SetInterceptFileChooserDialog) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Page.setInterceptFileChooserDialog", b, sessionID)
	return err
}

// HandleFileChooser contains the parameters for the CDP command
// `handleFileChooser`.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-handleFileChooser
type HandleFileChooser struct {
	Action string   `json:"action"`
	Files  []string `json:"files,omitempty"`
}

// NewHandleFileChooser constructs a new HandleFileChooser struct instance.
// action is "accept", "cancel" or "fallback".
func NewHandleFileChooser(action string, files ...string) *HandleFileChooser {
	return &HandleFileChooser{Action: action, Files: files}
}

// Do sends the HandleFileChooser CDP command.
func (h *HandleFileChooser) Do(ctx context.Context, sender devtools.Sender, sessionID string) error {
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	_, err = sender.SendCommand(ctx, "Page.handleFileChooser", b, sessionID)
	return err
}

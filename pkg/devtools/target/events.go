package target

// TargetCreated asynchronous event. Fired when a new target (tab,
// iframe, worker) is discovered, requires SetDiscoverTargets.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#event-targetCreated
type TargetCreated struct {
	TargetInfo Info `json:"targetInfo"`
}

// TargetInfoChanged asynchronous event. Fired whenever target's URL,
// title, audible state, etc. changes.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#event-targetInfoChanged
type TargetInfoChanged struct {
	TargetInfo Info `json:"targetInfo"`
}

// TargetDestroyed asynchronous event. Fired when a target is destroyed.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#event-targetDestroyed
type TargetDestroyed struct {
	TargetID string `json:"targetId"`
}

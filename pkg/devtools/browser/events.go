package browser

// DownloadWillBegin asynchronous event. Fired when the page is about to
// start a download (requires SetDownloadBehavior's EventsEnabled).
//
// https://chromedevtools.github.io/devtools-protocol/tot/Browser/#event-downloadWillBegin
type DownloadWillBegin struct {
	FrameID           string `json:"frameId"`
	Guid              string `json:"guid"`
	URL               string `json:"url"`
	SuggestedFilename string `json:"suggestedFilename"`
}

// DownloadProgress asynchronous event. Fired as a download makes
// progress; the final call for a given Guid has State "completed" or
// "canceled".
//
// https://chromedevtools.github.io/devtools-protocol/tot/Browser/#event-downloadProgress
type DownloadProgress struct {
	Guid          string  `json:"guid"`
	TotalBytes    float64 `json:"totalBytes"`
	ReceivedBytes float64 `json:"receivedBytes"`
	State         string  `json:"state"`
}

package runtime

// ConsoleAPICalled asynchronous event. Fired when the console API is
// called (console.log, console.error, ...) in the page.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Runtime/#event-consoleAPICalled
type ConsoleAPICalled struct {
	Type      string         `json:"type"`
	Args      []RemoteObject `json:"args"`
	Timestamp float64        `json:"timestamp"`
}

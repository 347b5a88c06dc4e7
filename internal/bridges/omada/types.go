package omada

import "encoding/json"

// Site is a top-level polled entity discovered from the controller's
// site list. The set is cached for the process lifetime; a site removed
// upstream is not pruned locally.
type Site struct {
	// ID is the controller-assigned site identifier, used in URL
	// templates and as the namespace subtree root.
	ID string

	// Name is the human-readable site name.
	Name string

	// Raw is the full site record as returned by the controller.
	Raw json.RawMessage
}

// Logger is the interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// envelope is the controller's response wrapper. Every v2 API response
// carries errorCode and msg; the payload sits under result. Some
// endpoints nest one more envelope inside result (observed depth 0-2,
// never deeper).
type envelope struct {
	ErrorCode int             `json:"errorCode"`
	Msg       string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

// listResult is the pagination wrapper list endpoints place inside the
// envelope result.
type listResult struct {
	TotalRows   int             `json:"totalRows"`
	CurrentPage int             `json:"currentPage"`
	Data        json.RawMessage `json:"data"`
}

// loginResult is the payload of a successful credential exchange.
type loginResult struct {
	Token string `json:"token"`
}

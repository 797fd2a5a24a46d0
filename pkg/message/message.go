// Package message defines the two envelopes that cross the boundary between
// the bridge and the application core.
package message

// Request is what the bridge hands to the core for every completed inbound
// HTTP request. It carries data only; the capability to answer the client
// stays with the pending registry.
type Request struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Response is produced by the core. ID must echo a Request.ID.
type Response struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

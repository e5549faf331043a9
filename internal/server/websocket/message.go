// Package websocket serves live render sessions over websocket
// connections. Each connection owns one render session, so the suffix stays
// stable across the edits a client sends.
package websocket

import "promptkit/internal/server/handlers"

// WSMessage is a message in either direction.
type WSMessage struct {
	Type    string                   `json:"type"`
	ID      string                   `json:"id,omitempty"` // echoed from the update that produced a prompt
	Request *handlers.RenderRequest  `json:"request,omitempty"`
	Result  *handlers.RenderResponse `json:"result,omitempty"`
	Code    string                   `json:"code,omitempty"`
	Message string                   `json:"message,omitempty"`
}

// Message types.
const (
	TypeUpdate = "update"
	TypePrompt = "prompt"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeError  = "error"
)

// Error codes sent in error messages.
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeRenderFailed   = "RENDER_FAILED"
)

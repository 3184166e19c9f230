package view

import "context"

// Client → server message types.
const (
	MsgAdd     = "add"
	MsgDelete  = "delete"
	MsgConfirm = "confirm"
	MsgSignIn  = "sign_in"
	MsgSignOut = "sign_out"
)

// Server → client message types.
const (
	MsgRender   = "render"
	MsgNotice   = "notice"
	MsgRedirect = "redirect"
	// MsgConfirm is also sent by the server to ask the question.
)

// Inbound is a message from the browser.
type Inbound struct {
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	ID       string `json:"id,omitempty"`
	OK       bool   `json:"ok,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Outbound is a message to the browser.
type Outbound struct {
	Type string `json:"type"`

	// render
	HTML      string `json:"html,omitempty"`
	ResetForm bool   `json:"reset_form,omitempty"`

	// confirm
	ID     string `json:"id,omitempty"`
	Prompt string `json:"prompt,omitempty"`

	// notice
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// redirect
	URL string `json:"url,omitempty"`
}

// Transport carries messages between a Controller and one browser.
// Receive returns io.EOF when the browser went away normally.
type Transport interface {
	Receive(ctx context.Context) (Inbound, error)
	Send(ctx context.Context, m Outbound) error
}

package ws

import "voble/internal/game"

const ProtocolVersion = "1.0"

const maxRequestIDLength = 64

// StateMessage carries one coordinator snapshot.
type StateMessage struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	State           game.State `json:"state"`
}

// ActionMessage is sent by the client. Action is one of start, retry,
// guess or complete.
type ActionMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Guess     string `json:"guess,omitempty"`
}

type ActionResult struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	Ok              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
	Result          any    `json:"result,omitempty"`
}

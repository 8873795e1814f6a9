package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
)

// Error is a JSON-RPC error member. Simulation failures carry the program
// logs in Data.
type Error struct {
	Code    int
	Message string
	Err     json.RawMessage
	Logs    []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Err) > 0 && string(e.Err) != "null" {
		b.WriteString(": ")
		b.Write(e.Err)
	}
	if len(e.Logs) > 0 {
		b.WriteString(" logs: ")
		b.WriteString(strings.Join(e.Logs, " "))
	}
	return b.String()
}

func newError(w *wireError) *Error {
	e := &Error{Code: w.Code, Message: w.Message}
	if len(w.Data) > 0 {
		var data struct {
			Err  json.RawMessage `json:"err"`
			Logs []string        `json:"logs"`
		}
		if json.Unmarshal(w.Data, &data) == nil {
			e.Err = data.Err
			e.Logs = data.Logs
		}
	}
	return e
}

var programErrorMarkers = []string{
	"Error Code:",
	"InvalidTicketReceipt",
	"TicketAlreadyUsed",
	"Unauthorized",
}

// IsProgramRejection reports whether a simulation failure came from the
// program itself rather than from the venue being unreachable.
func IsProgramRejection(errJSON string, logs []string) bool {
	if strings.Contains(errJSON, "InstructionError") || strings.Contains(errJSON, "Custom") {
		return true
	}
	joined := strings.Join(logs, " ")
	for _, m := range programErrorMarkers {
		if strings.Contains(joined, m) {
			return true
		}
	}
	return false
}

// IsTicketAlreadyUsed matches the program's TicketAlreadyUsed rejection
// (custom error 6032) in an error message or its logs.
func IsTicketAlreadyUsed(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "TicketAlreadyUsed") ||
		strings.Contains(msg, "6032") ||
		strings.Contains(msg, "0x1790")
}

// IsNetworkError reports transport-level failures, which for the TEE usually
// mean a stale or rejected token.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// DescribeError turns common ledger failures into a sentence fit for the
// player. Unrecognised errors pass through unchanged.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "insufficient lamports"):
		return "Insufficient SOL balance for transaction"
	case strings.Contains(msg, "blockhash not found"), strings.Contains(msg, "blockhash expired"):
		return "Transaction expired, please try again"
	case strings.Contains(msg, "already in use"), strings.Contains(msg, "already exists"):
		return "Account already exists or is in use"
	case strings.Contains(msg, "simulation failed"):
		return "Transaction simulation failed"
	case strings.Contains(msg, "user rejected"):
		return "Transaction was rejected"
	}
	return err.Error()
}

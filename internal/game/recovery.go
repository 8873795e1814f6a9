package game

import (
	"strings"

	"voble/internal/ledger"
	"voble/internal/session"
)

// NeedsRecovery reports the one partial failure the coordinator heals on
// its own: the ledger recorded payment for periodID but the TEE session was
// never advanced to it.
func NeedsRecovery(profile *ledger.ProfileRecord, sess *session.Record, periodID string) bool {
	id := strings.TrimSpace(periodID)
	if profile == nil || sess == nil || id == "" {
		return false
	}
	return profile.LastPaidPeriod == id && !sess.IsCurrentPeriod
}

package ticket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"voble/internal/rpc"
	"voble/internal/wallet"
)

// Error text below is shown to the player as-is.
var (
	ErrNoWallet                = errors.New("No wallet connected")
	ErrWalletNotReady          = errors.New("Wallet not properly connected")
	ErrPeriodRequired          = errors.New("Period ID is required")
	ErrLeaderboardUnverifiable = errors.New("Unable to verify leaderboard status. Please try again later.")
	ErrNoSessionKey            = errors.New("Session keypair not available. Please refresh the page and try again.")
	ErrRecoveryNoSessionKey    = errors.New("Session keypair not available. Please refresh the page.")
	ErrTEEAuth                 = errors.New("Failed to authenticate with TEE")
	ErrTEEUnreachable          = errors.New("Unable to connect to game server. The server may be under maintenance. Please try again later.")
	ErrResetFailed             = errors.New("Ticket purchased but game session failed to initialize. Please refresh the page or contact support.")
)

// AlreadyRecovered is the signature reported when the reset had already
// been applied by an earlier attempt.
const AlreadyRecovered = "already-recovered"

type LeaderboardsMissingError struct {
	Missing []string
}

func (e *LeaderboardsMissingError) Error() string {
	return fmt.Sprintf("Leaderboards for this period haven't been initialized yet. Missing: %s. Please try again later or contact support.",
		strings.Join(e.Missing, ", "))
}

// TEEUnavailableError means the pre-flight simulation failed for a reason
// other than a program rejection.
type TEEUnavailableError struct {
	ErrJSON string
}

func (e *TEEUnavailableError) Error() string {
	return fmt.Sprintf("Game server is currently unavailable. Please try again later. (TEE simulation failed: %s)", e.ErrJSON)
}

type RecoveryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RecoveryExhaustedError) Error() string {
	return fmt.Sprintf("Recovery failed after %d attempts. Please try again later.", e.Attempts)
}

func (e *RecoveryExhaustedError) Unwrap() error { return e.Last }

// purchaseErrorMessage maps a purchase failure to the message returned in
// Result.Error. Messages this package composes pass through untouched.
func purchaseErrorMessage(err error, price uint64) string {
	if ownMessage(err) {
		return err.Error()
	}
	raw := err.Error()
	msg := rpc.DescribeError(err)
	switch {
	case strings.Contains(raw, "User rejected"):
		msg = "Transaction was rejected"
	case strings.Contains(raw, "insufficient"):
		msg = fmt.Sprintf("Insufficient SOL balance (need %s + fees)", formatSOL(price))
	case strings.Contains(raw, "already exists"):
		msg = "You already have an active game session for this period"
	}
	return msg
}

const lamportsPerSOL = 1_000_000_000

func formatSOL(lamports uint64) string {
	return strconv.FormatFloat(float64(lamports)/lamportsPerSOL, 'f', -1, 64) + " SOL"
}

func ownMessage(err error) bool {
	var missing *LeaderboardsMissingError
	var unavailable *TEEUnavailableError
	if errors.As(err, &missing) || errors.As(err, &unavailable) {
		return true
	}
	for _, sentinel := range []error{
		ErrNoWallet, ErrWalletNotReady, ErrPeriodRequired, ErrLeaderboardUnverifiable,
		ErrNoSessionKey, ErrTEEAuth, ErrTEEUnreachable, ErrResetFailed,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// failureClass buckets purchase failures for metrics.
func failureClass(err error) string {
	var missing *LeaderboardsMissingError
	var unavailable *TEEUnavailableError
	switch {
	case errors.As(err, &unavailable), errors.Is(err, ErrTEEUnreachable):
		return "tee_unavailable"
	case errors.Is(err, ErrResetFailed):
		return "partial"
	case errors.Is(err, ErrNoWallet), errors.Is(err, ErrWalletNotReady), errors.Is(err, ErrPeriodRequired),
		errors.Is(err, ErrLeaderboardUnverifiable), errors.Is(err, ErrNoSessionKey), errors.As(err, &missing):
		return "precondition"
	case errors.Is(err, wallet.ErrUserRejected):
		return "declined"
	case strings.Contains(strings.ToLower(err.Error()), "insufficient"):
		return "funds"
	}
	return "other"
}

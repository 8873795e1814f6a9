// Package ledger reads the base-ledger state the session flow depends on:
// the player's profile and the period aggregation records.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voble/internal/chain"
	"voble/internal/period"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrAggregationUnverifiable = errors.New("aggregation_unverifiable")

// MissingRecordsError lists the leaderboards not yet created for a period,
// formatted as "daily (2025-01-02)".
type MissingRecordsError struct {
	Missing []string
}

func (e *MissingRecordsError) Error() string {
	return "missing aggregation records: " + strings.Join(e.Missing, ", ")
}

type AccountReader interface {
	AccountInfo(ctx context.Context, addr chain.Address) ([]byte, bool, error)
}

// ProfileRecord is the ledger's view of a player.
type ProfileRecord struct {
	Player           string `json:"player"`
	Username         string `json:"username"`
	TotalGamesPlayed uint32 `json:"totalGamesPlayed"`
	GamesWon         uint32 `json:"gamesWon"`
	TotalScore       uint64 `json:"totalScore"`
	BestScore        uint32 `json:"bestScore"`
	ActivityPoints   uint64 `json:"activityPoints"`
	LastPaidPeriod   string `json:"lastPaidPeriod"`
}

type Reader struct {
	rpc     AccountReader
	program chain.Program
}

func NewReader(rpc AccountReader, program chain.Program) *Reader {
	return &Reader{rpc: rpc, program: program}
}

// Profile returns nil when the player has never created a profile.
func (r *Reader) Profile(ctx context.Context, player chain.Address) (*ProfileRecord, error) {
	data, ok, err := r.rpc.AccountInfo(ctx, r.program.UserProfile(player))
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if !ok {
		return nil, nil
	}
	acc, err := chain.DecodeProfile(data)
	if err != nil {
		return nil, err
	}
	return &ProfileRecord{
		Player:           acc.Player.String(),
		Username:         acc.Username,
		TotalGamesPlayed: acc.TotalGamesPlayed,
		GamesWon:         acc.GamesWon,
		TotalScore:       acc.TotalScore,
		BestScore:        acc.BestScore,
		ActivityPoints:   acc.ActivityPoints,
		LastPaidPeriod:   chain.TrimNul([]byte(acc.LastPaidPeriod)),
	}, nil
}

// CheckAggregationRecords confirms the daily, weekly and monthly leaderboards
// exist for p. It returns *MissingRecordsError naming the absent ones, or
// ErrAggregationUnverifiable when any read fails.
func (r *Reader) CheckAggregationRecords(ctx context.Context, p period.Periods) error {
	ids := [3]string{p.Daily, p.Weekly, p.Monthly}
	kinds := [3]chain.LeaderboardKind{chain.LeaderboardDaily, chain.LeaderboardWeekly, chain.LeaderboardMonthly}
	var exists [3]bool

	g, gctx := errgroup.WithContext(ctx)
	for i := range ids {
		g.Go(func() error {
			_, ok, err := r.rpc.AccountInfo(gctx, r.program.Leaderboard(ids[i], kinds[i]))
			if err != nil {
				return err
			}
			exists[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Str("daily", p.Daily).Msg("leaderboard check failed")
		return fmt.Errorf("%w: %v", ErrAggregationUnverifiable, err)
	}

	var missing []string
	for i, ok := range exists {
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (%s)", kinds[i], ids[i]))
		}
	}
	if len(missing) > 0 {
		return &MissingRecordsError{Missing: missing}
	}
	return nil
}

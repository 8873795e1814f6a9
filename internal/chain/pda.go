package chain

var (
	SystemProgramID          = MustParseAddress("11111111111111111111111111111111")
	TokenProgramID           = MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xvB6qJ8ox2jGeJnbG")
	DefaultPaymentMint       = MustParseAddress("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")

	seedUserProfile    = []byte("user_profile")
	seedSession        = []byte("session")
	seedTargetWord     = []byte("target_word")
	seedLeaderboard    = []byte("leaderboard")
	seedGlobalConfig   = []byte("global_config")
	seedEventAuthority = []byte("__event_authority")
	seedDailyPeriod    = []byte("daily_period")
	seedWeeklyPeriod   = []byte("weekly_period")
	seedMonthlyPeriod  = []byte("monthly_period")
)

// LeaderboardKind selects the daily, weekly or monthly aggregation record.
type LeaderboardKind uint8

const (
	LeaderboardDaily LeaderboardKind = iota
	LeaderboardWeekly
	LeaderboardMonthly
)

func (k LeaderboardKind) String() string {
	switch k {
	case LeaderboardDaily:
		return "daily"
	case LeaderboardWeekly:
		return "weekly"
	case LeaderboardMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Program derives the accounts owned by the game program.
type Program struct {
	ID Address
}

func (p Program) derive(seeds ...[]byte) Address {
	addr, _, err := FindProgramAddress(seeds, p.ID)
	if err != nil {
		// Only reachable with a seed longer than 32 bytes.
		panic(err)
	}
	return addr
}

func (p Program) UserProfile(player Address) Address {
	return p.derive(seedUserProfile, player[:])
}

func (p Program) Session(player Address) Address {
	return p.derive(seedSession, player[:])
}

func (p Program) TargetWord(player Address) Address {
	return p.derive(seedTargetWord, player[:])
}

func (p Program) GlobalConfig() Address {
	return p.derive(seedGlobalConfig)
}

func (p Program) EventAuthority() Address {
	return p.derive(seedEventAuthority)
}

func (p Program) Leaderboard(periodID string, kind LeaderboardKind) Address {
	return p.derive(seedLeaderboard, []byte(periodID), []byte{byte(kind)})
}

func (p Program) PeriodState(periodID string, kind LeaderboardKind) Address {
	switch kind {
	case LeaderboardWeekly:
		return p.derive(seedWeeklyPeriod, []byte(periodID))
	case LeaderboardMonthly:
		return p.derive(seedMonthlyPeriod, []byte(periodID))
	default:
		return p.derive(seedDailyPeriod, []byte(periodID))
	}
}

func AssociatedTokenAddress(owner, mint Address) Address {
	addr, _, err := FindProgramAddress([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
	if err != nil {
		panic(err)
	}
	return addr
}

package chain

import (
	"crypto/sha256"
	"encoding/binary"
)

func instructionDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

type BuyTicketParams struct {
	Payer        Address
	Mint         Address
	PayerToken   Address
	PeriodID     string
	VaultAccount Address
}

// BuyTicketInstruction transfers the ticket price and records the paid
// period on the player's profile.
func (p Program) BuyTicketInstruction(params BuyTicketParams) Instruction {
	data := append([]byte{}, instructionDiscriminator("buy_ticket_and_start_game")...)
	data = appendString(data, params.PeriodID)
	vault := params.VaultAccount
	if vault.IsZero() {
		vault = p.derive([]byte("voble_vault"))
	}
	return Instruction{
		ProgramID: p.ID,
		Accounts: []AccountMeta{
			{Address: params.Payer, Signer: true, Writable: true},
			{Address: p.GlobalConfig()},
			{Address: p.UserProfile(params.Payer), Writable: true},
			{Address: p.Session(params.Payer), Writable: true},
			{Address: params.Mint},
			{Address: params.PayerToken, Writable: true},
			{Address: vault, Writable: true},
			{Address: TokenProgramID},
			{Address: SystemProgramID},
		},
		Data: data,
	}
}

// ResetSessionInstruction is paid for by the disposable session key and
// advances the player's session to periodID.
func (p Program) ResetSessionInstruction(payer, player Address, periodID string) Instruction {
	data := append([]byte{}, instructionDiscriminator("reset_session")...)
	data = appendString(data, periodID)
	return Instruction{
		ProgramID: p.ID,
		Accounts: []AccountMeta{
			{Address: payer, Signer: true, Writable: true},
			{Address: p.Session(player), Writable: true},
			{Address: p.TargetWord(player), Writable: true},
			{Address: p.UserProfile(player)},
		},
		Data: data,
	}
}

func (p Program) SubmitGuessInstruction(player Address, guess string) Instruction {
	data := append([]byte{}, instructionDiscriminator("submit_guess")...)
	data = appendString(data, guess)
	return Instruction{
		ProgramID: p.ID,
		Accounts: []AccountMeta{
			{Address: p.Session(player), Writable: true},
			{Address: p.TargetWord(player)},
			{Address: p.EventAuthority()},
			{Address: p.ID},
		},
		Data: data,
	}
}

type CommitStatsParams struct {
	Payer   Address
	Player  Address
	Daily   string
	Weekly  string
	Monthly string
}

func (p Program) CommitStatsInstruction(params CommitStatsParams) Instruction {
	data := append([]byte{}, instructionDiscriminator("commit_and_update_stats")...)
	data = appendString(data, params.Daily)
	data = appendString(data, params.Weekly)
	data = appendString(data, params.Monthly)
	return Instruction{
		ProgramID: p.ID,
		Accounts: []AccountMeta{
			{Address: params.Payer, Signer: true, Writable: true},
			{Address: params.Player},
			{Address: p.Session(params.Player), Writable: true},
			{Address: p.UserProfile(params.Player), Writable: true},
			{Address: p.Leaderboard(params.Daily, LeaderboardDaily), Writable: true},
			{Address: p.Leaderboard(params.Weekly, LeaderboardWeekly), Writable: true},
			{Address: p.Leaderboard(params.Monthly, LeaderboardMonthly), Writable: true},
		},
		Data: data,
	}
}

package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrDecode = errors.New("account_decode_failed")

const (
	periodIDLength = 32
	wordLength     = 5
	MaxGuesses     = 6
)

func accountDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("account:" + name))
	return h[:8]
}

var (
	sessionDiscriminator = accountDiscriminator("SessionAccount")
	profileDiscriminator = accountDiscriminator("UserProfile")
)

// LetterResult is the per-letter feedback for one guess.
type LetterResult uint8

const (
	LetterAbsent LetterResult = iota
	LetterPresent
	LetterCorrect
)

type Guess struct {
	Word   string         `json:"word"`
	Result []LetterResult `json:"result"`
}

// SessionAccount is the raw session as stored on the TEE.
type SessionAccount struct {
	Player              Address
	PeriodID            string
	GuessesUsed         uint8
	IsSolved            bool
	Completed           bool
	Score               uint32
	TimeMs              uint32
	VRFRequestTimestamp int64
	Guesses             []Guess
	RevealedTargetWord  string
}

// ProfileAccount is the raw user profile as stored on the base ledger.
type ProfileAccount struct {
	Player           Address
	Username         string
	TotalGamesPlayed uint32
	GamesWon         uint32
	TotalScore       uint64
	BestScore        uint32
	CreatedAt        int64
	LastPlayed       int64
	ActivityPoints   uint64
	LastPaidPeriod   string
}

type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.b) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrDecode, n, r.off, len(r.b))
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) boolean() bool { return r.u8() != 0 }

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) address() Address {
	var a Address
	copy(a[:], r.take(AddressLength))
	return a
}

func (r *reader) str() string {
	n := r.u32()
	if n > 1024 {
		r.err = fmt.Errorf("%w: string length %d", ErrDecode, n)
		return ""
	}
	return string(r.take(int(n)))
}

// fixed reads a NUL-padded byte array and trims at the first NUL.
func (r *reader) fixed(n int) string {
	return TrimNul(r.take(n))
}

func TrimNul(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putFixed(b []byte, s string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, s)
	return append(b, buf...)
}

func DecodeSession(data []byte) (SessionAccount, error) {
	r := &reader{b: data}
	if d := r.take(8); d != nil && !bytes.Equal(d, sessionDiscriminator) {
		return SessionAccount{}, fmt.Errorf("%w: session discriminator mismatch", ErrDecode)
	}
	s := SessionAccount{
		Player:              r.address(),
		PeriodID:            r.fixed(periodIDLength),
		GuessesUsed:         r.u8(),
		IsSolved:            r.boolean(),
		Completed:           r.boolean(),
		Score:               r.u32(),
		TimeMs:              r.u32(),
		VRFRequestTimestamp: int64(r.u64()),
	}
	for i := 0; i < MaxGuesses; i++ {
		present := r.boolean()
		word := r.fixed(wordLength)
		raw := r.take(wordLength)
		if !present || raw == nil {
			continue
		}
		res := make([]LetterResult, wordLength)
		for j, v := range raw {
			res[j] = LetterResult(v)
		}
		s.Guesses = append(s.Guesses, Guess{Word: word, Result: res})
	}
	s.RevealedTargetWord = r.fixed(wordLength)
	if r.err != nil {
		return SessionAccount{}, r.err
	}
	return s, nil
}

func EncodeSession(s SessionAccount) []byte {
	b := append([]byte{}, sessionDiscriminator...)
	b = append(b, s.Player[:]...)
	b = putFixed(b, s.PeriodID, periodIDLength)
	b = append(b, s.GuessesUsed, boolByte(s.IsSolved), boolByte(s.Completed))
	b = binary.LittleEndian.AppendUint32(b, s.Score)
	b = binary.LittleEndian.AppendUint32(b, s.TimeMs)
	b = binary.LittleEndian.AppendUint64(b, uint64(s.VRFRequestTimestamp))
	for i := 0; i < MaxGuesses; i++ {
		if i >= len(s.Guesses) {
			b = append(b, make([]byte, 1+2*wordLength)...)
			continue
		}
		g := s.Guesses[i]
		b = append(b, 1)
		b = putFixed(b, g.Word, wordLength)
		res := make([]byte, wordLength)
		for j := 0; j < wordLength && j < len(g.Result); j++ {
			res[j] = byte(g.Result[j])
		}
		b = append(b, res...)
	}
	return putFixed(b, s.RevealedTargetWord, wordLength)
}

func DecodeProfile(data []byte) (ProfileAccount, error) {
	r := &reader{b: data}
	if d := r.take(8); d != nil && !bytes.Equal(d, profileDiscriminator) {
		return ProfileAccount{}, fmt.Errorf("%w: profile discriminator mismatch", ErrDecode)
	}
	p := ProfileAccount{
		Player:           r.address(),
		Username:         r.str(),
		TotalGamesPlayed: r.u32(),
		GamesWon:         r.u32(),
		TotalScore:       r.u64(),
		BestScore:        r.u32(),
		CreatedAt:        int64(r.u64()),
		LastPlayed:       int64(r.u64()),
		ActivityPoints:   r.u64(),
		LastPaidPeriod:   r.str(),
	}
	if r.err != nil {
		return ProfileAccount{}, r.err
	}
	return p, nil
}

func EncodeProfile(p ProfileAccount) []byte {
	b := append([]byte{}, profileDiscriminator...)
	b = append(b, p.Player[:]...)
	b = appendString(b, p.Username)
	b = binary.LittleEndian.AppendUint32(b, p.TotalGamesPlayed)
	b = binary.LittleEndian.AppendUint32(b, p.GamesWon)
	b = binary.LittleEndian.AppendUint64(b, p.TotalScore)
	b = binary.LittleEndian.AppendUint32(b, p.BestScore)
	b = binary.LittleEndian.AppendUint64(b, uint64(p.CreatedAt))
	b = binary.LittleEndian.AppendUint64(b, uint64(p.LastPlayed))
	b = binary.LittleEndian.AppendUint64(b, p.ActivityPoints)
	return appendString(b, p.LastPaidPeriod)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

package chain

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const AddressLength = 32

var (
	ErrInvalidAddress = errors.New("invalid_address")
	ErrNoViableBump   = errors.New("no_viable_bump")
	ErrSeedTooLong    = errors.New("seed_too_long")
)

const maxSeedLength = 32

// Address is a 32-byte ed25519 public key or program-derived address. It is
// also used for blockhashes, which share the encoding.
type Address [AddressLength]byte

func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("%w: got %d bytes", ErrInvalidAddress, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// OnCurve reports whether the bytes decode to a valid ed25519 point.
func (a Address) OnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return Address{}, ErrSeedTooLong
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte("ProgramDerivedAddress"))
	var out Address
	copy(out[:], h.Sum(nil))
	if out.OnCurve() {
		return Address{}, ErrInvalidAddress
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 down for the first seed set that
// hashes off the curve.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if errors.Is(err, ErrSeedTooLong) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

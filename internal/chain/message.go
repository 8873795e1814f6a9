package chain

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

var (
	ErrMissingSigner   = errors.New("missing_signer")
	ErrTooManyAccounts = errors.New("too_many_accounts")
)

const SignatureLength = 64

// Signer is anything that can produce ed25519 signatures for one key.
type Signer interface {
	PublicKey() Address
	Sign(message []byte) ([]byte, error)
}

type AccountMeta struct {
	Address  Address
	Signer   bool
	Writable bool
}

type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}

// Message is an unsigned legacy transaction message.
type Message struct {
	FeePayer        Address
	RecentBlockhash Address
	Instructions    []Instruction
}

type compiledKey struct {
	addr     Address
	signer   bool
	writable bool
}

func (m Message) orderedKeys() []compiledKey {
	idx := map[Address]int{}
	keys := []compiledKey{{addr: m.FeePayer, signer: true, writable: true}}
	idx[m.FeePayer] = 0
	add := func(a Address, signer, writable bool) {
		if i, ok := idx[a]; ok {
			keys[i].signer = keys[i].signer || signer
			keys[i].writable = keys[i].writable || writable
			return
		}
		idx[a] = len(keys)
		keys = append(keys, compiledKey{addr: a, signer: signer, writable: writable})
	}
	for _, ix := range m.Instructions {
		for _, acc := range ix.Accounts {
			add(acc.Address, acc.Signer, acc.Writable)
		}
		add(ix.ProgramID, false, false)
	}

	rank := func(k compiledKey) int {
		switch {
		case k.signer && k.writable:
			return 0
		case k.signer:
			return 1
		case k.writable:
			return 2
		default:
			return 3
		}
	}
	ordered := make([]compiledKey, 0, len(keys))
	ordered = append(ordered, keys[0])
	for r := 0; r < 4; r++ {
		for _, k := range keys[1:] {
			if rank(k) == r {
				ordered = append(ordered, k)
			}
		}
	}
	return ordered
}

// RequiredSigners lists the signing keys in signature order.
func (m Message) RequiredSigners() []Address {
	var out []Address
	for _, k := range m.orderedKeys() {
		if k.signer {
			out = append(out, k.addr)
		}
	}
	return out
}

// Serialize produces the wire encoding that signatures are computed over.
func (m Message) Serialize() ([]byte, error) {
	keys := m.orderedKeys()
	if len(keys) > 255 {
		return nil, ErrTooManyAccounts
	}
	var numSigners, roSigned, roUnsigned uint8
	index := make(map[Address]uint8, len(keys))
	for i, k := range keys {
		index[k.addr] = uint8(i)
		switch {
		case k.signer && !k.writable:
			numSigners++
			roSigned++
		case k.signer:
			numSigners++
		case !k.writable:
			roUnsigned++
		}
	}

	out := []byte{numSigners, roSigned, roUnsigned}
	out = appendCompactU16(out, len(keys))
	for _, k := range keys {
		out = append(out, k.addr[:]...)
	}
	out = append(out, m.RecentBlockhash[:]...)
	out = appendCompactU16(out, len(m.Instructions))
	for _, ix := range m.Instructions {
		out = append(out, index[ix.ProgramID])
		out = appendCompactU16(out, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			out = append(out, index[acc.Address])
		}
		out = appendCompactU16(out, len(ix.Data))
		out = append(out, ix.Data...)
	}
	return out, nil
}

type Transaction struct {
	Signatures [][]byte
	Message    Message
}

// SignTransaction signs msg with every required signer; each required key
// must be covered by one of signers.
func SignTransaction(msg Message, signers ...Signer) (*Transaction, error) {
	payload, err := msg.Serialize()
	if err != nil {
		return nil, err
	}
	byKey := make(map[Address]Signer, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}
	required := msg.RequiredSigners()
	sigs := make([][]byte, 0, len(required))
	for _, key := range required {
		s, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
		sig, err := s.Sign(payload)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return &Transaction{Signatures: sigs, Message: msg}, nil
}

func (t *Transaction) Serialize() ([]byte, error) {
	payload, err := t.Message.Serialize()
	if err != nil {
		return nil, err
	}
	out := appendCompactU16(nil, len(t.Signatures))
	for _, sig := range t.Signatures {
		out = append(out, sig...)
	}
	return append(out, payload...), nil
}

func (t *Transaction) Base64() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Signature returns the fee payer's signature, which identifies the
// transaction on both ledgers.
func (t *Transaction) Signature() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return base58.Encode(t.Signatures[0])
}

func appendCompactU16(b []byte, n int) []byte {
	v := uint16(n)
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

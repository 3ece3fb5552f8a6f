// Package keys turns candidate private keys into Ethereum addresses.
package keys

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/dustinxie/ecc"
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrUnknownDeriver    = errors.New("unknown deriver")
)

// Format selects how an address is rendered.
type Format int

const (
	// FormatChecksum renders EIP-55 mixed-case hex with a 0x prefix.
	FormatChecksum Format = iota
	// FormatLower renders bare lower-case hex.
	FormatLower
)

// Deriver derives the address belonging to a hex-encoded private key.
type Deriver interface {
	Address(candidate string) (string, error)
}

const (
	NameECC  = "ecc"
	NameGeth = "geth"
)

// Names lists the derivers ByName understands.
var Names = []string{NameECC, NameGeth}

var curveOrder = ecc.P256k1().Params().N

// ParseScalar reads candidate as a big-endian hex integer and checks that it
// lies in [1, N-1] for secp256k1.
func ParseScalar(candidate string) (*big.Int, error) {
	if candidate == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPrivateKey)
	}
	for i := 0; i < len(candidate); i++ {
		if !IsHex(candidate[i]) {
			return nil, fmt.Errorf("%w: non-hex character %q at %d", ErrInvalidPrivateKey, candidate[i], i)
		}
	}

	k, ok := new(big.Int).SetString(candidate, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrivateKey, candidate)
	}
	if k.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero", ErrInvalidPrivateKey)
	}
	if k.Cmp(curveOrder) >= 0 {
		return nil, fmt.Errorf("%w: not below the curve order", ErrInvalidPrivateKey)
	}
	return k, nil
}

// ByName returns a fresh deriver. The returned value is not safe for
// concurrent use.
func ByName(name string, format Format) (Deriver, error) {
	switch name {
	case NameECC, "":
		return NewECC(format), nil
	case NameGeth:
		return NewGeth(format), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeriver, name)
	}
}

// IsHex reports whether c is a hex digit of either case.
func IsHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

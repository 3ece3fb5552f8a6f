package keys

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Geth derives addresses through go-ethereum's crypto package.
type Geth struct {
	format Format
}

func NewGeth(format Format) *Geth {
	return &Geth{format: format}
}

func (d *Geth) Address(candidate string) (string, error) {
	k, err := ParseScalar(candidate)
	if err != nil {
		return "", err
	}

	privateKey, err := crypto.ToECDSA(k.FillBytes(make([]byte, 32)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	if d.format == FormatLower {
		return hex.EncodeToString(address.Bytes()), nil
	}
	return address.Hex(), nil
}

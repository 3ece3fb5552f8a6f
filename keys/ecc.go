package keys

import (
	"hash"
	"math/big"

	"github.com/dustinxie/ecc"
	"golang.org/x/crypto/sha3"
)

type baseMultiplier interface {
	ScalarBaseMult(k []byte) (x, y *big.Int)
}

// ECC derives addresses with dustinxie/ecc and a reused Keccak state.
type ECC struct {
	curve  baseMultiplier
	keccak hash.Hash
	format Format

	scalar    [32]byte
	publicKey [64]byte
}

func NewECC(format Format) *ECC {
	return &ECC{
		curve:  ecc.P256k1(),
		keccak: sha3.NewLegacyKeccak256(),
		format: format,
	}
}

func (d *ECC) Address(candidate string) (string, error) {
	k, err := ParseScalar(candidate)
	if err != nil {
		return "", err
	}

	x, y := d.curve.ScalarBaseMult(k.FillBytes(d.scalar[:]))
	x.FillBytes(d.publicKey[:32])
	y.FillBytes(d.publicKey[32:])

	d.keccak.Reset()
	d.keccak.Write(d.publicKey[:])
	address := d.keccak.Sum(nil)[12:]

	return FormatAddress(address, d.format), nil
}

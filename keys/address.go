package keys

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
)

// FormatAddress renders a 20 byte address.
func FormatAddress(address []byte, format Format) string {
	if format == FormatLower {
		return hex.EncodeToString(address)
	}
	return common.BytesToAddress(address).Hex()
}

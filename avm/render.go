package avm

import (
	"encoding/base32"
	"encoding/base64"
	"fmt"
)

// ByteRendering is the set of simultaneous renderings a byte-string value
// expands to in the DAP "variables" tree (spec.md §4.6 / §8 S6).
type ByteRendering struct {
	Hex     string
	Base64  string
	ASCII   string
	HasASCII bool
	Address string
	HasAddress bool
	Length  int
}

// Render computes every applicable rendering of a byte string.
func Render(b []byte) ByteRendering {
	r := ByteRendering{
		Hex:    fmt.Sprintf("0x%x", b),
		Base64: base64.StdEncoding.EncodeToString(b),
		Length: len(b),
	}
	if isPrintableASCII(b) {
		r.ASCII = string(b)
		r.HasASCII = true
	}
	if len(b) == 32 {
		r.Address = encodeAlgorandAddress(b)
		r.HasAddress = true
	}
	return r
}

func isPrintableASCII(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// encodeAlgorandAddress renders a 32-byte public key as the standard
// 58-character Algorand address: base32(pubkey || checksum) with padding
// stripped, where checksum is the last 4 bytes of sha512/256(pubkey).
func encodeAlgorandAddress(pubkey []byte) string {
	checksum := shortAddressChecksum(pubkey)
	full := make([]byte, 0, len(pubkey)+len(checksum))
	full = append(full, pubkey...)
	full = append(full, checksum...)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(full)
}

func shortAddressChecksum(pubkey []byte) []byte {
	sum := hashProgram(pubkey) // sha512/256, same primitive used for program hashes
	return sum[len(sum)-4:]
}

// Package gearkey derives the per-account obfuscation key that tags exported
// gear records.
//
// The identifier's UTF-8 bytes are hashed with MurmurHash3 (x86_32 variant,
// seed 0, unsigned). The low byte of that hash is used as a single-byte XOR
// key over the same bytes, and the result is base64-encoded (standard
// alphabet, padded). Both the encoded string and the full 32-bit hash are
// embedded verbatim in the export; consumers use the pair to correlate
// records from the same account without seeing the raw identifier.
package gearkey

import (
	"encoding/base64"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Key is the derived obfuscation pair. The JSON names match the export
// document.
type Key struct {
	Key  string `json:"key"`
	Hash uint32 `json:"h"`
}

// XORByte returns the single-byte key: the low byte of the hash.
func (k Key) XORByte() byte {
	return byte(k.Hash & 0xff)
}

// Derive computes the obfuscation pair for accountID. Deterministic: the same
// identifier always yields the same Key.
func Derive(accountID string) Key {
	raw := []byte(accountID)
	h := murmur3.Sum32(raw)

	return Key{
		Key:  base64.StdEncoding.EncodeToString(xorBytes(raw, byte(h&0xff))),
		Hash: h,
	}
}

// Decode inverts Derive and returns the identifier bytes.
func Decode(k Key) ([]byte, error) {
	enc, err := base64.StdEncoding.DecodeString(k.Key)
	if err != nil {
		return nil, fmt.Errorf("gearkey: decoding key: %w", err)
	}

	return xorBytes(enc, k.XORByte()), nil
}

// Verify reports whether k was derived from accountID.
func Verify(k Key, accountID string) bool {
	return Derive(accountID) == k
}

func xorBytes(in []byte, key byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ key
	}

	return out
}

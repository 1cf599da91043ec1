// Package bytesutil holds the small byte-level helpers the RLPx handshake
// leans on: XOR, 16-byte frame alignment, nonce sampling and the
// node-ID/public-key conversions.
package bytesutil

import (
	"crypto/rand"
	"fmt"

	"github.com/fjl/rlpx-dial/crypto/secp256k1"
	"github.com/fjl/rlpx-dial/rlpxerr"
)

// XOR returns a new slice holding the elementwise XOR of a and b, truncated
// to the shorter of the two inputs. Truncation is the contract, not a bug.
func XOR(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Align16 returns the smallest multiple of 16 that is >= n.
func Align16(n int) int {
	return (n + 15) &^ 15
}

// Nonce returns 32 cryptographically random bytes from the OS CSPRNG.
func Nonce() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return buf, nil
}

// PublicKeyFromPrivate derives the 64-byte uncompressed public key (the
// 0x04 prefix stripped) for a 32-byte secp256k1 scalar.
func PublicKeyFromPrivate(priv []byte) ([]byte, error) {
	pub, err := secp256k1.GeneratePubKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrInvalidKey, err)
	}
	return pub[1:], nil
}

// IDToPubkey re-prefixes a 64-byte node ID with the 0x04 uncompressed-point
// tag, producing the 65-byte form the crypto backend expects.
func IDToPubkey(id []byte) []byte {
	out := make([]byte, 0, 65)
	out = append(out, 0x04)
	return append(out, id...)
}

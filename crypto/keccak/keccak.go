// Package keccak exposes Keccak-256, the hash function underlying Ethereum
// and distinct from standardized SHA3-256. The sponge permutation itself is
// delegated to golang.org/x/crypto/sha3 rather than reimplemented: the
// permutation is a security-sensitive primitive the ecosystem already
// provides, and this package's job is only to expose it through the small
// streaming API the rest of the handshake expects (mirroring the
// crypto.KeccakState / crypto.NewKeccakState helper in real go-ethereum).
package keccak

import (
	"hash"

	"golang.org/x/crypto/sha3"
)

// rate is the Keccak-256 sponge rate in bytes (1600-bit state, 512-bit capacity).
const rate = 136

// KeccakState is a hash.Hash that can also be squeezed for an arbitrary
// number of output bytes via Read, same shape as go-ethereum's internal
// keccakState interface.
type KeccakState interface {
	hash.Hash
	Read(p []byte) (int, error)
}

func newState() KeccakState {
	return sha3.NewLegacyKeccak256().(KeccakState)
}

// Sum256 returns the Keccak-256 digest of data.
func Sum256(data []byte) [32]byte {
	var out [32]byte
	s := newState()
	s.Write(data)
	s.Read(out[:])
	return out
}

// Hasher is a streaming Keccak-256 absorber. The zero value is ready to use.
// Once Read has been called the hasher has switched from absorbing to
// squeezing; writing more input after that point is a usage error.
type Hasher struct {
	state   KeccakState
	reading bool
}

// Write absorbs p into the sponge. It panics if called after Read.
func (h *Hasher) Write(p []byte) (int, error) {
	if h.reading {
		panic("keccak: Write after Read")
	}
	if h.state == nil {
		h.state = newState()
	}
	return h.state.Write(p)
}

// Read squeezes len(p) bytes of output. Successive Read calls continue the
// squeeze where the previous one left off.
func (h *Hasher) Read(p []byte) (int, error) {
	if h.state == nil {
		h.state = newState()
	}
	h.reading = true
	return h.state.Read(p)
}

// Sum256 squeezes a 32-byte digest.
func (h *Hasher) Sum256() [32]byte {
	var out [32]byte
	h.Read(out[:])
	return out
}

// Peek256 returns the 32-byte digest of everything absorbed so far without
// switching the hasher into squeeze mode: it relies on hash.Hash.Sum's
// documented contract that Sum does not change the underlying state, so
// Write may still follow it. This is what the rolling MAC engine needs —
// digest() must be callable mid-stream without finalizing the hash.
func (h *Hasher) Peek256() [32]byte {
	if h.state == nil {
		h.state = newState()
	}
	var out [32]byte
	copy(out[:], h.state.Sum(nil))
	return out
}

// Reset returns the hasher to its zero state, ready to absorb again.
func (h *Hasher) Reset() {
	h.state = nil
	h.reading = false
}

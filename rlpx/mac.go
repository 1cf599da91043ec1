package rlpx

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/fjl/rlpx-dial/bytesutil"
	"github.com/fjl/rlpx-dial/crypto/keccak"
	"github.com/fjl/rlpx-dial/rlpxerr"
)

// hashMAC is the rolling Keccak-256/AES-256 MAC engine that produces the
// header and body tags of an RLPx frame. Its hash state is never finalized:
// digest() reads the running Keccak-256 sum without switching the absorber
// into squeeze mode, so update() and digest() may be interleaved indefinitely.
type hashMAC struct {
	block cipher.Block
	hash  keccak.Hasher
}

// newHashMAC builds a MAC engine keyed with the 32-byte mac_secret. The hash
// starts empty; callers seed it with update before the first tag call.
func newHashMAC(macSecret []byte) (*hashMAC, error) {
	if len(macSecret) != 32 {
		return nil, fmt.Errorf("%w: mac secret must be 32 bytes", rlpxerr.ErrCryptoBackend)
	}
	block, err := aes.NewCipher(macSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return &hashMAC{block: block}, nil
}

// update absorbs b into the running hash without producing a tag.
func (m *hashMAC) update(b []byte) {
	m.hash.Write(b)
}

// digest returns the first 16 bytes of the Keccak-256 digest over everything
// absorbed so far, without finalizing the hash.
func (m *hashMAC) digest() []byte {
	sum := m.hash.Peek256()
	out := make([]byte, 16)
	copy(out, sum[:16])
	return out
}

func (m *hashMAC) encryptBlock(in []byte) []byte {
	out := make([]byte, len(in))
	m.block.Encrypt(out, in)
	return out
}

// headerTag computes the tag for a 16-byte frame header. d is the digest
// before this call began; e is its AES-256 block encryption; the XOR of e
// with header16 is absorbed before the returned digest is taken, coupling
// this tag to whatever body_tag follows for the same frame.
func (m *hashMAC) headerTag(header16 []byte) ([]byte, error) {
	if len(header16) != 16 {
		return nil, fmt.Errorf("%w: header must be 16 bytes", rlpxerr.ErrCryptoBackend)
	}
	d := m.digest()
	e := m.encryptBlock(d)
	m.update(bytesutil.XOR(e, header16))
	return m.digest(), nil
}

// bodyTag computes the tag for a frame body. bodyBytes must already be
// 16-byte aligned; it is absorbed before the rest of the MAC-chaining steps
// run, and must be called after headerTag for the same frame.
func (m *hashMAC) bodyTag(bodyBytes []byte) ([]byte, error) {
	if len(bodyBytes) == 0 || len(bodyBytes)%16 != 0 {
		return nil, fmt.Errorf("%w: body must be a positive multiple of 16 bytes", rlpxerr.ErrCryptoBackend)
	}
	m.update(bodyBytes)
	d1 := m.digest()
	e := m.encryptBlock(d1)
	m.update(bytesutil.XOR(e, d1))
	return m.digest(), nil
}

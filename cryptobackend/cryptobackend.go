// Package cryptobackend is the dependency-injected capability set the RLPx
// session depends on: ECDH, recoverable ECDSA, the ack's Concat-KDF
// decryption key, and ECIES-tagged encryption of the auth payload. Keeping
// this behind an interface (rather than calling crypto/secp256k1 and
// crypto/ecies directly from rlpx) is what lets the handshake state machine
// be unit tested against a deterministic fake, instead of needing live
// randomness and curve arithmetic in every test.
package cryptobackend

import (
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/fjl/rlpx-dial/crypto/ecies"
	"github.com/fjl/rlpx-dial/crypto/secp256k1"
	"github.com/fjl/rlpx-dial/rlpxerr"
)

// Backend is the four-operation capability set from the handshake's crypto
// backend contract.
type Backend interface {
	// ECDH returns the raw, unhashed X coordinate of priv*pub.
	ECDH(priv32, pub65 []byte) ([]byte, error)

	// ECDSASign returns a 65-byte recoverable signature r||s||v, v in {0,1}.
	ECDSASign(priv32, msg32 []byte) ([]byte, error)

	// ConcatKDFDecrypt derives the 16-byte AES-128-CTR key used to decrypt
	// an inbound ECIES envelope's body, given the envelope's ephemeral
	// sender public key and the recipient's static private key.
	ConcatKDFDecrypt(senderEphemeralPub65, recipientPriv32 []byte) ([]byte, error)

	// ECIESEncryptTagged encrypts plaintext to remotePub65 using a fresh
	// ephemeral sender key, returning
	// 0x04||ephemeral_pub||IV||ciphertext||HMAC-SHA256 tag.
	ECIESEncryptTagged(plaintext, remotePub65, associatedData []byte) ([]byte, error)
}

// Default is the production backend: secp256k1 via btcec for curve
// operations, and the ecies package's Concat-KDF/ECIES implementation.
type Default struct{}

// New returns the production crypto backend.
func New() Backend { return Default{} }

func (Default) ECDH(priv, pub []byte) ([]byte, error) {
	x, err := secp256k1.ECDH(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return x, nil
}

func (Default) ECDSASign(priv, msg []byte) ([]byte, error) {
	sig, err := secp256k1.Sign(msg, priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return sig, nil
}

func (d Default) ConcatKDFDecrypt(senderEphemeralPub, recipientPriv []byte) ([]byte, error) {
	shared, err := d.ECDH(recipientPriv, senderEphemeralPub)
	if err != nil {
		return nil, err
	}
	ke, _, err := ecies.DeriveKeys(shared, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return ke, nil
}

func (Default) ECIESEncryptTagged(plaintext, remotePub, associatedData []byte) ([]byte, error) {
	curve := secp256k1.S256()
	x, y := elliptic.Unmarshal(curve, remotePub)
	if x == nil {
		return nil, fmt.Errorf("%w: malformed remote public key", rlpxerr.ErrInvalidKey)
	}
	pub := &ecies.PublicKey{
		X:      x,
		Y:      y,
		Curve:  curve,
		Params: ecies.ParamsFromCurve(curve),
	}
	ct, err := ecies.Encrypt(rand.Reader, pub, plaintext, nil, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return ct, nil
}

// Package secp256k1 provides the curve operations the handshake needs:
// public-key derivation, ECDH, and recoverable ECDSA sign/recover. The
// teacher historically bound this package to cgo libsecp256k1; this build
// instead wraps github.com/btcsuite/btcd/btcec/v2, the pure-Go backend the
// teacher's own later go.mod already depends on, behind the same function
// names and wire formats (65-byte uncompressed pubkey, 65-byte r||s||v sig).
package secp256k1

import (
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

var (
	// ErrInvalidKey is returned for a private key that is zero or >= N.
	ErrInvalidKey = errors.New("secp256k1: invalid private key")
	// ErrInvalidMsgLen is returned when a hash argument isn't 32 bytes.
	ErrInvalidMsgLen = errors.New("secp256k1: hash must be 32 bytes")
	// ErrInvalidSignatureLen is returned for a malformed signature.
	ErrInvalidSignatureLen = errors.New("secp256k1: signature must be 65 bytes")
	// ErrInvalidRecoveryID is returned when the recovery byte is out of range.
	ErrInvalidRecoveryID = errors.New("secp256k1: invalid recovery id")
)

// S256 returns the secp256k1 curve as a standard library elliptic.Curve.
func S256() elliptic.Curve {
	return btcec.S256()
}

// N is the order of the secp256k1 base point.
var N = S256().Params().N

func validScalar(key []byte) (*big.Int, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	d := new(big.Int).SetBytes(key)
	if d.Sign() == 0 || d.Cmp(N) >= 0 {
		return nil, ErrInvalidKey
	}
	return d, nil
}

// GeneratePubKey derives the 65-byte uncompressed public key for a 32-byte
// private scalar.
func GeneratePubKey(seckey []byte) ([]byte, error) {
	if _, err := validScalar(seckey); err != nil {
		return nil, err
	}
	priv, pub := btcec.PrivKeyFromBytes(seckey)
	_ = priv
	return pub.SerializeUncompressed(), nil
}

// ECDH computes the raw X coordinate (32 bytes, big-endian, zero padded) of
// priv*pub, without hashing the result.
func ECDH(priv, pub []byte) ([]byte, error) {
	if _, err := validScalar(priv); err != nil {
		return nil, err
	}
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("secp256k1: invalid public key: %w", err)
	}
	privKey, _ := btcec.PrivKeyFromBytes(priv)

	ecdsaPriv := privKey.ToECDSA()
	ecdsaPub := pubKey.ToECDSA()
	x, _ := S256().ScalarMult(ecdsaPub.X, ecdsaPub.Y, ecdsaPriv.D.Bytes())

	out := make([]byte, 32)
	xb := x.Bytes()
	copy(out[32-len(xb):], xb)
	return out, nil
}

// Sign produces a 65-byte recoverable ECDSA signature r||s||v over a 32-byte
// hash, with v in {0,1}.
func Sign(hash, seckey []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidMsgLen
	}
	if _, err := validScalar(seckey); err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(seckey)
	compact, err := btcecdsa.SignCompact(priv, hash, false)
	if err != nil {
		return nil, err
	}

	sig := make([]byte, 65)
	copy(sig[0:32], compact[1:33])
	copy(sig[32:64], compact[33:65])
	sig[64] = compact[0] - 27
	return sig, nil
}

// RecoverPubkey recovers the 65-byte uncompressed public key that produced
// sig over hash.
func RecoverPubkey(hash, sig []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidMsgLen
	}
	if len(sig) != 65 {
		return nil, ErrInvalidSignatureLen
	}
	if sig[64] > 3 {
		return nil, ErrInvalidRecoveryID
	}
	compact := make([]byte, 65)
	compact[0] = sig[64] + 27
	copy(compact[1:33], sig[0:32])
	copy(compact[33:65], sig[32:64])

	pub, _, err := btcecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, ErrInvalidRecoveryID
	}
	return pub.SerializeUncompressed(), nil
}

// Package crypto collects the handshake's key-material operations: Keccak
// hashing, recoverable ECDSA sign/recover, key import/export and
// Encrypt/Decrypt convenience wrappers around ECIES (the auth/ack envelopes
// themselves are built through the cryptobackend package). It composes
// crypto/secp256k1, crypto/keccak and crypto/ecies the way the teacher's
// own top-level crypto package composes its internal equivalents, trimmed
// of the chain-address machinery (PubkeyToAddress, CreateAddress, checksum
// formatting) that has no role in a handshake client.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"math/big"

	"golang.org/x/crypto/ripemd160"

	"github.com/fjl/rlpx-dial/crypto/ecies"
	"github.com/fjl/rlpx-dial/crypto/keccak"
	"github.com/fjl/rlpx-dial/crypto/secp256k1"
)

// paddedBigBytes returns d's big-endian bytes, left zero-padded to n bytes.
func paddedBigBytes(d *big.Int, n int) []byte {
	out := make([]byte, n)
	b := d.Bytes()
	copy(out[n-len(b):], b)
	return out
}

var (
	ErrInvalidHashLen = errors.New("crypto: hash must be 32 bytes")
	ErrInvalidKeyFile = errors.New("crypto: invalid key file")
)

// S256 returns the secp256k1 curve, the curve used throughout the handshake.
func S256() elliptic.Curve { return secp256k1.S256() }

// Keccak256 returns the Keccak-256 digest of the concatenation of the inputs.
func Keccak256(data ...[]byte) []byte {
	var h keccak.Hasher
	for _, b := range data {
		h.Write(b)
	}
	d := h.Sum256()
	return d[:]
}

// Keccak256Hash returns the Keccak-256 digest of the concatenation of the
// inputs as a fixed-size array.
func Keccak256Hash(data ...[]byte) (h [32]byte) {
	var hasher keccak.Hasher
	for _, b := range data {
		hasher.Write(b)
	}
	return hasher.Sum256()
}

// Sha256 returns the SHA-256 digest of data.
func Sha256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Ripemd160 returns the RIPEMD-160 digest of data.
func Ripemd160(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}

// ToECDSA converts a 32-byte big-endian scalar to an ECDSA private key on
// the secp256k1 curve. It ignores errors; callers that need validation
// should use HexToECDSA or ToECDSAWithError.
func ToECDSA(d []byte) *ecdsa.PrivateKey {
	priv, _ := ToECDSAWithError(d)
	return priv
}

// ToECDSAWithError converts a private key byte slice to an ECDSA private key.
func ToECDSAWithError(d []byte) (*ecdsa.PrivateKey, error) {
	pub, err := secp256k1.GeneratePubKey(d)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = S256()
	priv.D = new(big.Int).SetBytes(d)
	priv.PublicKey.X, priv.PublicKey.Y = elliptic.Unmarshal(S256(), pub)
	return priv, nil
}

// FromECDSA exports a private key into a 32-byte big-endian scalar.
func FromECDSA(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return paddedBigBytes(priv.D, 32)
}

// ToECDSAPub converts a 65-byte uncompressed public key to an ecdsa.PublicKey.
func ToECDSAPub(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(S256(), pub)
	return &ecdsa.PublicKey{Curve: S256(), X: x, Y: y}
}

// FromECDSAPub exports a public key to its 65-byte uncompressed form.
func FromECDSAPub(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(S256(), pub.X, pub.Y)
}

// HexToECDSA parses a secp256k1 private key from its hex representation.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	b, err := hex.DecodeString(hexkey)
	if err != nil {
		return nil, errors.New("crypto: invalid hex string")
	}
	if len(b) != 32 {
		return nil, errors.New("crypto: invalid length, need 256 bits")
	}
	return ToECDSAWithError(b)
}

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(S256(), rand.Reader)
}

// LoadECDSA loads a hex-encoded private key from file.
func LoadECDSA(file string) (*ecdsa.PrivateKey, error) {
	buf, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(string(buf))
	if err != nil {
		return nil, err
	}
	return ToECDSAWithError(key)
}

// SaveECDSA saves a private key to file, hex-encoded.
func SaveECDSA(file string, key *ecdsa.PrivateKey) error {
	k := hex.EncodeToString(FromECDSA(key))
	return ioutil.WriteFile(file, []byte(k), 0600)
}

// Sign produces a 65-byte recoverable signature of hash (which must be
// exactly 32 bytes) with v in {0,1}.
func Sign(hash []byte, prv *ecdsa.PrivateKey) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHashLen
	}
	seckey := paddedBigBytes(prv.D, 32)
	return secp256k1.Sign(hash, seckey)
}

// SignEthereum is Sign with the recovery id shifted to the Ethereum
// convention, v in {27,28}. Callers passing such a signature to Ecrecover
// must shift v back down first.
func SignEthereum(hash []byte, prv *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := Sign(hash, prv)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// Ecrecover returns the uncompressed public key that created the given
// signature over hash.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	return secp256k1.RecoverPubkey(hash, sig)
}

// SigToPub recovers the public key that created the given signature.
func SigToPub(hash, sig []byte) (*ecdsa.PublicKey, error) {
	s, err := Ecrecover(hash, sig)
	if err != nil {
		return nil, err
	}
	return ToECDSAPub(s), nil
}

// Encrypt is a convenience wrapper that ECIES-encrypts message for the
// recipient's ECDSA public key.
func Encrypt(pub *ecdsa.PublicKey, message []byte) ([]byte, error) {
	eciesPub := ecies.ImportECDSAPublic(pub)
	return ecies.Encrypt(rand.Reader, eciesPub, message, nil, nil)
}

// Decrypt is a convenience wrapper that ECIES-decrypts ct using the given
// ECDSA private key.
func Decrypt(prv *ecdsa.PrivateKey, ct []byte) ([]byte, error) {
	eciesPrv := ecies.ImportECDSA(prv)
	return eciesPrv.Decrypt(rand.Reader, ct, nil, nil)
}

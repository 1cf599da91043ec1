// Copyright (c) 2013 Kyle Isom <kyle@tyrfingr.is>
// Copyright (c) 2012 The Go Authors. All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are
// met:
//
//    * Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//    * Redistributions in binary form must reproduce the above
// copyright notice, this list of conditions and the following disclaimer
// in the documentation and/or other materials provided with the
// distribution.
//    * Neither the name of Google Inc. nor the names of its
// contributors may be used to endorse or promote products derived from
// this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
// "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
// LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
// A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
// OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
// LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package ecies implements the Elliptic Curve Integrated Encryption Scheme,
// the asymmetric primitive the auth/ack handshake messages are wrapped in.
package ecies

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"hash"
	"io"
	"math/big"

	"github.com/fjl/rlpx-dial/crypto/secp256k1"
)

var (
	ErrImport                     = errors.New("ecies: failed to import key")
	ErrInvalidCurve               = errors.New("ecies: invalid elliptic curve")
	ErrInvalidPublicKey           = errors.New("ecies: invalid public key")
	ErrSharedKeyIsPointAtInfinity = errors.New("ecies: shared key is point at infinity")
	ErrSharedKeyTooBig            = errors.New("ecies: shared key params are too big")
	ErrInvalidParams              = errors.New("ecies: invalid ECIES parameters")
	ErrInvalidMessage             = errors.New("ecies: invalid message")
)

// PublicKey is an ECIES public key, an ECDSA point tagged with the ECIES
// parameters appropriate for its curve.
type PublicKey struct {
	X, Y *big.Int
	elliptic.Curve
	Params *ECIESParams
}

// PrivateKey is an ECIES private key.
type PrivateKey struct {
	PublicKey
	D *big.Int
}

// ECIESParams holds the parameters used for ECIES operation on a given curve:
// the KDF and MAC hash constructors, the symmetric key and block size, and
// the AEAD's block-cipher constructor.
type ECIESParams struct {
	Hash      func() hash.Hash // hash function
	hashAlgo  crypto_hash
	Cipher    func([]byte) (cipher.Block, error) // symmetric cipher
	BlockSize int                                // block size of the cipher
	KeyLen    int                                // length of the symmetric key
}

// crypto_hash is a local stand-in avoiding a dependency on crypto.Hash for
// the one comparison cmpParams needs.
type crypto_hash int

var (
	ECIES_AES128_SHA256 = &ECIESParams{
		Hash:      sha256New,
		hashAlgo:  1,
		Cipher:    aes.NewCipher,
		BlockSize: aes.BlockSize,
		KeyLen:    16,
	}
	ECIES_AES192_SHA384 = &ECIESParams{
		Hash:      sha384New,
		hashAlgo:  2,
		Cipher:    aes.NewCipher,
		BlockSize: aes.BlockSize,
		KeyLen:    24,
	}
	ECIES_AES256_SHA256 = &ECIESParams{
		Hash:      sha256New,
		hashAlgo:  3,
		Cipher:    aes.NewCipher,
		BlockSize: aes.BlockSize,
		KeyLen:    32,
	}
	ECIES_AES256_SHA384 = &ECIESParams{
		Hash:      sha384New,
		hashAlgo:  4,
		Cipher:    aes.NewCipher,
		BlockSize: aes.BlockSize,
		KeyLen:    32,
	}
	ECIES_AES256_SHA512 = &ECIESParams{
		Hash:      sha512New,
		hashAlgo:  5,
		Cipher:    aes.NewCipher,
		BlockSize: aes.BlockSize,
		KeyLen:    32,
	}
)

var paramsFromCurve = map[elliptic.Curve]*ECIESParams{
	elliptic.P256():  ECIES_AES128_SHA256,
	elliptic.P384():  ECIES_AES192_SHA384,
	elliptic.P521():  ECIES_AES256_SHA512,
	secp256k1.S256(): ECIES_AES128_SHA256,
}

// ParamsFromCurve selects the ECIES parameters appropriate for the given
// curve, or nil if the curve isn't supported (P224, notably, is rejected:
// its group order is shorter than SHA-256's output, which makes the
// concat-KDF's length accounting degenerate).
func ParamsFromCurve(curve elliptic.Curve) *ECIESParams {
	return paramsFromCurve[curve]
}

// DefaultCurve is the curve used for RLPx handshake keys.
var DefaultCurve = secp256k1.S256()

func sha256New() hash.Hash { return sha256.New() }
func sha384New() hash.Hash { return sha512.New384() }
func sha512New() hash.Hash { return sha512.New() }

// ImportECDSA converts an ECDSA private key into an ECIES private key.
func ImportECDSA(prv *ecdsa.PrivateKey) *PrivateKey {
	pub := ImportECDSAPublic(&prv.PublicKey)
	return &PrivateKey{*pub, prv.D}
}

// ImportECDSAPublic converts an ECDSA public key into an ECIES public key.
func ImportECDSAPublic(pub *ecdsa.PublicKey) *PublicKey {
	return &PublicKey{
		X:      pub.X,
		Y:      pub.Y,
		Curve:  pub.Curve,
		Params: ParamsFromCurve(pub.Curve),
	}
}

// ExportECDSA converts an ECIES private key into an ECDSA private key.
func ExportECDSA(prv *PrivateKey) *ecdsa.PrivateKey {
	pub := &prv.PublicKey
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: pub.Curve, X: pub.X, Y: pub.Y},
		D:         prv.D,
	}
}

// GenerateKey generates an ECIES keypair on the given curve using rand as
// the entropy source.
func GenerateKey(rand io.Reader, curve elliptic.Curve, params *ECIESParams) (*PrivateKey, error) {
	pb, x, y, err := elliptic.GenerateKey(curve, rand)
	if err != nil {
		return nil, err
	}
	prv := new(PrivateKey)
	prv.PublicKey.X = x
	prv.PublicKey.Y = y
	prv.PublicKey.Curve = curve
	prv.D = new(big.Int).SetBytes(pb)
	if params == nil {
		params = ParamsFromCurve(curve)
	}
	prv.PublicKey.Params = params
	return prv, nil
}

// MaxSharedKeyLength returns the maximum length of the shared key the
// public key can produce.
func MaxSharedKeyLength(pub *PublicKey) int {
	return (pub.Curve.Params().BitSize + 7) / 8
}

// GenerateShared derives a shared secret with the given public key via
// ECDH and returns its X coordinate as skLen+macLen bytes, left zero-padded.
// It fails with ErrSharedKeyTooBig when skLen+macLen exceeds
// MaxSharedKeyLength(pub).
func (prv *PrivateKey) GenerateShared(pub *PublicKey, skLen, macLen int) ([]byte, error) {
	if prv.PublicKey.Curve != pub.Curve {
		return nil, ErrInvalidCurve
	}
	if skLen+macLen > MaxSharedKeyLength(pub) {
		return nil, ErrSharedKeyTooBig
	}

	x, _ := pub.Curve.ScalarMult(pub.X, pub.Y, prv.D.Bytes())
	if x == nil {
		return nil, ErrSharedKeyIsPointAtInfinity
	}

	sk := make([]byte, skLen+macLen)
	skBytes := x.Bytes()
	copy(sk[len(sk)-len(skBytes):], skBytes)
	return sk, nil
}

// concatKDF implements NIST SP 800-56 Concatenation Key Derivation Function.
func concatKDF(hash hash.Hash, z, s1 []byte, kdLen int) (k []byte, err error) {
	if s1 == nil {
		s1 = make([]byte, 0)
	}

	reps := (kdLen + hash.Size() - 1) / hash.Size()
	if big.NewInt(int64(reps)).Cmp(big.NewInt(0x7fffffff)) > 0 {
		return nil, ErrSharedKeyTooBig
	}

	counter := []byte{0, 0, 0, 1}
	k = make([]byte, 0)

	for i := 0; i < reps; i++ {
		hash.Write(counter)
		hash.Write(z)
		hash.Write(s1)
		k = append(k, hash.Sum(nil)...)
		hash.Reset()
		incCounter(counter)
	}

	k = k[:kdLen]
	return
}

func incCounter(ctr []byte) {
	if ctr[3]++; ctr[3] != 0 {
		return
	}
	if ctr[2]++; ctr[2] != 0 {
		return
	}
	if ctr[1]++; ctr[1] != 0 {
		return
	}
	if ctr[0]++; ctr[0] != 0 {
		return
	}
}

// deriveKeys splits the concat-KDF output into an AES key and a MAC key
// derived by hashing the second half of the KDF output.
func deriveKeys(hash hash.Hash, z []byte, s1 []byte, keyLen int) (Ke, Km []byte, err error) {
	K, err := concatKDF(hash, z, s1, 2*keyLen)
	if err != nil {
		return nil, nil, err
	}
	Ke = K[:keyLen]
	Km = K[keyLen:]
	hash.Reset()
	hash.Write(Km)
	Km = hash.Sum(nil)
	return Ke, Km, nil
}

// DeriveKeys derives the Ke/Km key pair from a raw ECDH shared secret using
// the SHA-256 Concat-KDF, exactly as Encrypt/Decrypt do internally: Ke is
// the first keyLen bytes of the KDF output, and Km is the SHA-256 hash
// (32 bytes) of the next keyLen bytes. Exported for callers that need only the KDF half of the ECIES
// envelope — e.g. a handshake that decrypts its peer's ciphertext itself
// instead of going through Decrypt's full envelope parsing.
func DeriveKeys(sharedSecret []byte, keyLen int) (Ke, Km []byte, err error) {
	return deriveKeys(sha256.New(), sharedSecret, nil, keyLen)
}

// messageTag computes the MAC of a message using the given hash function,
// key and shared info.
func messageTag(hash func() hash.Hash, km, msg, shared []byte) []byte {
	mac := hmac.New(hash, km)
	mac.Write(msg)
	mac.Write(shared)
	return mac.Sum(nil)
}

// symEncrypt carries out CTR encryption using the provided block cipher.
func symEncrypt(rand io.Reader, params *ECIESParams, key, m []byte) (ct []byte, err error) {
	c, err := params.Cipher(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, params.BlockSize)
	if _, err = io.ReadFull(rand, iv); err != nil {
		return nil, err
	}

	ct = make([]byte, len(m)+params.BlockSize)
	copy(ct, iv)
	ctr := cipher.NewCTR(c, iv)
	ctr.XORKeyStream(ct[params.BlockSize:], m)
	return ct, nil
}

// symDecrypt carries out CTR decryption using the provided block cipher.
func symDecrypt(params *ECIESParams, key, ct []byte) (m []byte, err error) {
	c, err := params.Cipher(key)
	if err != nil {
		return nil, err
	}
	if len(ct) < params.BlockSize {
		return nil, ErrInvalidMessage
	}

	iv := ct[:params.BlockSize]
	m = make([]byte, len(ct)-params.BlockSize)
	ctr := cipher.NewCTR(c, iv)
	ctr.XORKeyStream(m, ct[params.BlockSize:])
	return m, nil
}

// Encrypt encrypts m with the receiver's public key, returning the ECIES
// envelope: ephemeral pubkey || IV || ciphertext || HMAC tag.
//
// s1 and s2 contain shared information that is not part of the resulting
// ciphertext; s1 is fed into the KDF, s2 is fed into the MAC.
func Encrypt(rand io.Reader, pub *PublicKey, m, s1, s2 []byte) (ct []byte, err error) {
	params := pub.Params
	if params == nil {
		if params = ParamsFromCurve(pub.Curve); params == nil {
			return nil, ErrInvalidParams
		}
	}
	R, err := GenerateKey(rand, pub.Curve, params)
	if err != nil {
		return nil, err
	}

	z, err := R.GenerateShared(pub, params.KeyLen, params.KeyLen)
	if err != nil {
		return nil, err
	}
	hash := params.Hash()
	Ke, Km, err := deriveKeys(hash, z, s1, params.KeyLen)
	if err != nil {
		return nil, err
	}

	em, err := symEncrypt(rand, params, Ke, m)
	if err != nil || len(em) <= params.BlockSize {
		return nil, err
	}

	d := messageTag(params.Hash, Km, em, s2)

	Rb := elliptic.Marshal(pub.Curve, R.PublicKey.X, R.PublicKey.Y)
	ct = make([]byte, len(Rb)+len(em)+len(d))
	copy(ct, Rb)
	copy(ct[len(Rb):], em)
	copy(ct[len(Rb)+len(em):], d)
	return ct, nil
}

// Decrypt decrypts an ECIES ciphertext produced by Encrypt.
func (prv *PrivateKey) Decrypt(rand io.Reader, c, s1, s2 []byte) (m []byte, err error) {
	if len(c) == 0 {
		return nil, ErrInvalidMessage
	}
	params := prv.PublicKey.Params
	if params == nil {
		if params = ParamsFromCurve(prv.PublicKey.Curve); params == nil {
			return nil, ErrInvalidParams
		}
	}

	hSize := params.Hash().Size()
	ctLen := len(c) - hSize
	if ctLen <= 0 {
		return nil, ErrInvalidMessage
	}

	var rLen int
	switch c[0] {
	case 2, 3, 4:
		rLen = (prv.PublicKey.Curve.Params().BitSize/8)*2 + 1
	default:
		return nil, ErrInvalidPublicKey
	}

	if len(c) < rLen+params.BlockSize+hSize {
		return nil, ErrInvalidMessage
	}

	R := new(PublicKey)
	R.Curve = prv.PublicKey.Curve
	R.X, R.Y = elliptic.Unmarshal(R.Curve, c[:rLen])
	if R.X == nil {
		return nil, ErrInvalidPublicKey
	}

	z, err := prv.GenerateShared(R, params.KeyLen, params.KeyLen)
	if err != nil {
		return nil, err
	}
	hash := params.Hash()
	Ke, Km, err := deriveKeys(hash, z, s1, params.KeyLen)
	if err != nil {
		return nil, err
	}

	em := c[rLen : len(c)-hSize]
	d := c[len(c)-hSize:]

	d2 := messageTag(params.Hash, Km, em, s2)
	if !hmac.Equal(d, d2) {
		return nil, ErrInvalidMessage
	}

	return symDecrypt(params, Ke, em)
}

// MarshalPublic marshals an ECIES public key to the 65-byte uncompressed
// SEC1 point encoding.
func MarshalPublic(pub *PublicKey) ([]byte, error) {
	return elliptic.Marshal(pub.Curve, pub.X, pub.Y), nil
}

// UnmarshalPublic unmarshals a SEC1 uncompressed public key.
func UnmarshalPublic(in []byte) (*PublicKey, error) {
	x, y := elliptic.Unmarshal(DefaultCurve, in)
	if x == nil {
		return nil, ErrInvalidPublicKey
	}
	return &PublicKey{X: x, Y: y, Curve: DefaultCurve, Params: ParamsFromCurve(DefaultCurve)}, nil
}

// MarshalPrivate encodes a private key to DER (SEC1 ECPrivateKey).
func MarshalPrivate(prv *PrivateKey) ([]byte, error) {
	return x509.MarshalECPrivateKey(ExportECDSA(prv))
}

// UnmarshalPrivate decodes a DER-encoded (SEC1 ECPrivateKey) private key.
func UnmarshalPrivate(data []byte) (*PrivateKey, error) {
	key, err := x509.ParseECPrivateKey(data)
	if err != nil {
		return nil, ErrImport
	}
	return ImportECDSA(key), nil
}

// ExportPrivatePEM encodes a private key as a PEM block.
func ExportPrivatePEM(prv *PrivateKey) (pk []byte, err error) {
	der, err := MarshalPrivate(prv)
	if err != nil {
		return nil, err
	}
	blk := &pem.Block{Type: "ECDSA PRIVATE KEY", Headers: nil, Bytes: der}
	return pem.EncodeToMemory(blk), nil
}

// ImportPrivatePEM decodes a PEM-encoded private key.
func ImportPrivatePEM(pk []byte) (*PrivateKey, error) {
	blk, _ := pem.Decode(pk)
	if blk == nil {
		return nil, ErrImport
	}
	return UnmarshalPrivate(blk.Bytes)
}

// ExportPublicPEM encodes a public key as a PEM block.
func ExportPublicPEM(pub *PublicKey) (pk []byte, err error) {
	der, err := MarshalPublic(pub)
	if err != nil {
		return nil, err
	}
	blk := &pem.Block{Type: "ECDSA PUBLIC KEY", Headers: nil, Bytes: der}
	return pem.EncodeToMemory(blk), nil
}

// ImportPublicPEM decodes a PEM-encoded public key.
func ImportPublicPEM(pk []byte) (*PublicKey, error) {
	blk, _ := pem.Decode(pk)
	if blk == nil {
		return nil, ErrImport
	}
	return UnmarshalPublic(blk.Bytes)
}

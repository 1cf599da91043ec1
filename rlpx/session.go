// Package rlpx implements the RLPx handshake state machine: auth
// construction, ack parsing and secret derivation, and emission of the
// first encrypted frame (Hello). The session is modeled as a sequence of
// distinct Go types — Session (INIT/AUTH_SENT), SecureSession
// (SECURE_PENDING/FRAME_SENT) — each carrying only the fields that exist in
// that state, rather than one struct with fields that start nil and get
// populated across calls. Go has no move semantics, so a `consumed` flag on
// each state stands in for Rust's compile-time enforcement: calling a
// transition twice on the same value returns rlpxerr.ErrStateError instead
// of compiling away the possibility.
package rlpx

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/fjl/rlpx-dial/bytesutil"
	"github.com/fjl/rlpx-dial/crypto"
	"github.com/fjl/rlpx-dial/cryptobackend"
	"github.com/fjl/rlpx-dial/rlpx/wire"
	"github.com/fjl/rlpx-dial/rlpxerr"
)

const (
	eciesOverhead = 113 // 1 (0x04) + 64 (ephemeral pubkey) + 16 (IV) + 32 (tag)
	authPadMin    = 100
	authPadMax    = 250
	helloVersion  = 5
	clientID      = "rlpx-dial/1.0"
	capName       = "eth"
	capVersion    = 66
	oversizeLimit = 1 << 24
)

// Session is a handshake in its INIT or AUTH_SENT state.
type Session struct {
	backend cryptobackend.Backend

	localPrivateKey []byte // 32 bytes
	localPublicKey  []byte // 64 bytes, uncompressed minus 0x04
	remoteNodeID    []byte // 64 bytes

	ephemeralPrivateKey []byte // 32 bytes
	localNonce          []byte // 32 bytes

	consumed bool // set once GetAuth has run; guards against double transition

	// set by GetAuth, carried forward into SecureSession for MAC seeding
	initiatorAuthBytes []byte
}

// NewSession constructs a handshake in the INIT state for a 32-byte local
// private key and the peer's 64-byte node ID.
func NewSession(backend cryptobackend.Backend, localPriv, remoteNodeID []byte) (*Session, error) {
	if len(remoteNodeID) != 64 {
		return nil, fmt.Errorf("%w: remote node id must be 64 bytes", rlpxerr.ErrInvalidKey)
	}
	localPub, err := bytesutil.PublicKeyFromPrivate(localPriv)
	if err != nil {
		return nil, err
	}
	ephPriv, err := randomScalar()
	if err != nil {
		return nil, err
	}
	nonce, err := bytesutil.Nonce()
	if err != nil {
		return nil, err
	}
	return &Session{
		backend:             backend,
		localPrivateKey:     append([]byte(nil), localPriv...),
		localPublicKey:      localPub,
		remoteNodeID:        append([]byte(nil), remoteNodeID...),
		ephemeralPrivateKey: ephPriv,
		localNonce:          nonce,
	}, nil
}

func randomScalar() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return buf, nil
}

// GetAuth builds and returns the on-wire auth bytes to transmit, and
// transitions the session to AUTH_SENT. Calling it a second time on the
// same Session fails with ErrStateError.
func (s *Session) GetAuth() ([]byte, error) {
	if s.consumed {
		return nil, fmt.Errorf("%w: GetAuth already called", rlpxerr.ErrStateError)
	}

	remotePub := bytesutil.IDToPubkey(s.remoteNodeID)
	staticSharedX, err := s.backend.ECDH(s.localPrivateKey, remotePub)
	if err != nil {
		return nil, err
	}
	signingInput := bytesutil.XOR(staticSharedX, s.localNonce)
	sig, err := s.backend.ECDSASign(s.ephemeralPrivateKey, signingInput)
	if err != nil {
		return nil, err
	}

	body := &wire.AuthBody{
		Signature:       sig,
		InitiatorPubkey: s.localPublicKey,
		InitiatorNonce:  s.localNonce,
		Version:         4,
	}
	payload, err := wire.EncodeAuthBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}

	padLen, err := randPadLen(authPadMin, authPadMax)
	if err != nil {
		return nil, err
	}
	pad := make([]byte, padLen)
	if _, err := rand.Read(pad); err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	payload = append(payload, pad...)

	macAssociated := make([]byte, 2)
	binary.BigEndian.PutUint16(macAssociated, uint16(len(payload)+eciesOverhead))

	enc, err := s.backend.ECIESEncryptTagged(payload, remotePub, macAssociated)
	if err != nil {
		return nil, err
	}

	onWire := append(append([]byte(nil), macAssociated...), enc...)
	s.initiatorAuthBytes = onWire
	s.consumed = true
	return onWire, nil
}

// randPadLen returns a uniformly random integer in [min, max].
func randPadLen(min, max int) (int, error) {
	span := int64(max - min + 1)
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	return min + int(n.Int64()), nil
}

// ParseAck consumes the session (AUTH_SENT) and the raw incoming ack bytes
// (size[2] || enc-ack-body), deriving the session secrets and returning the
// next-state SecureSession (SECURE_PENDING). It is a one-shot consuming
// operation: calling ParseAck again, on either the original Session or by
// re-wrapping its now-zeroed fields, fails with ErrStateError.
func (s *Session) ParseAck(raw []byte) (*SecureSession, error) {
	if !s.consumed || s.initiatorAuthBytes == nil {
		return nil, fmt.Errorf("%w: ParseAck called before GetAuth", rlpxerr.ErrStateError)
	}
	if len(raw) < 2+65+16+32 {
		return nil, fmt.Errorf("%w: ack too short", rlpxerr.ErrMalformedAck)
	}

	senderEphemeralPub := raw[2 : 2+65]
	ke, err := s.backend.ConcatKDFDecrypt(senderEphemeralPub, s.localPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}

	rest := raw[2+65:]
	if len(rest) < 16+32 {
		return nil, fmt.Errorf("%w: ack too short for IV and tag", rlpxerr.ErrMalformedAck)
	}
	iv := rest[:16]
	ciphertext := append([]byte(nil), rest[16:len(rest)-32]...)

	block, err := aes.NewCipher(ke)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(ciphertext, ciphertext)

	ack, err := wire.DecodeAckBody(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrMalformedAck, err)
	}
	if len(ack.RemoteEphemeralPubkey) != 64 || len(ack.RemoteNonce) != 32 {
		return nil, fmt.Errorf("%w: unexpected ack field lengths", rlpxerr.ErrMalformedAck)
	}

	remoteEphemeralPub := bytesutil.IDToPubkey(ack.RemoteEphemeralPubkey)
	ephemeralSharedX, err := s.backend.ECDH(s.ephemeralPrivateKey, remoteEphemeralPub)
	if err != nil {
		return nil, err
	}

	hNonce := crypto.Keccak256(ack.RemoteNonce, s.localNonce)
	sharedSecret := crypto.Keccak256(ephemeralSharedX, hNonce)
	aesSecret := crypto.Keccak256(ephemeralSharedX, sharedSecret)
	macSecret := crypto.Keccak256(ephemeralSharedX, aesSecret)

	aesBlock, err := aes.NewCipher(aesSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	aesCipher := cipher.NewCTR(aesBlock, make([]byte, 16))

	mac, err := newHashMAC(macSecret)
	if err != nil {
		return nil, err
	}
	mac.update(bytesutil.XOR(macSecret, ack.RemoteNonce))
	mac.update(s.initiatorAuthBytes)

	// consume this state so a second ParseAck call surfaces ErrStateError
	s.initiatorAuthBytes = nil

	return &SecureSession{
		localPublicKey: s.localPublicKey,
		remoteNonce:    ack.RemoteNonce,
		aesCipher:      aesCipher,
		mac:            mac,
	}, nil
}

// SecureSession is a handshake in its SECURE_PENDING or FRAME_SENT state.
type SecureSession struct {
	localPublicKey []byte
	remoteNonce    []byte

	aesCipher cipher.Stream
	mac       *hashMAC

	consumed bool
}

// GetHello builds and returns the first encrypted frame (Hello), consuming
// SECURE_PENDING and transitioning to FRAME_SENT. Calling it twice fails
// with ErrStateError; a Hello body whose length cannot fit the 24-bit frame
// size field fails with ErrOversizeFrame.
func (ss *SecureSession) GetHello(listenPort uint16) ([]byte, error) {
	if ss.consumed {
		return nil, fmt.Errorf("%w: GetHello already called", rlpxerr.ErrStateError)
	}

	prefix, err := wire.EncodeHelloPrefix()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	hello := &wire.Hello{
		ProtocolVersion: helloVersion,
		ClientID:        clientID,
		Caps:            []wire.Protocol{{Name: capName, Version: capVersion}},
		ListenPort:      uint(listenPort),
		NodeID:          ss.localPublicKey,
	}
	helloEnc, err := wire.EncodeHello(hello)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}

	body := append(append([]byte(nil), prefix...), helloEnc...)
	bodySize := len(body)
	if bodySize >= oversizeLimit {
		return nil, fmt.Errorf("%w: body length %d", rlpxerr.ErrOversizeFrame, bodySize)
	}
	padded := make([]byte, bytesutil.Align16(bodySize))
	copy(padded, body)

	capHeader, err := wire.EncodeCapHeader(&wire.CapHeader{CapID: 0, ContextID: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	header := make([]byte, 16)
	header[0] = byte(bodySize >> 16)
	header[1] = byte(bodySize >> 8)
	header[2] = byte(bodySize)
	copy(header[3:], capHeader)

	ss.aesCipher.XORKeyStream(header, header)
	ss.aesCipher.XORKeyStream(padded, padded)

	headerTag, err := ss.mac.headerTag(header)
	if err != nil {
		return nil, err
	}
	bodyTag, err := ss.mac.bodyTag(padded)
	if err != nil {
		return nil, err
	}

	ss.consumed = true

	out := make([]byte, 0, len(header)+len(headerTag)+len(padded)+len(bodyTag))
	out = append(out, header...)
	out = append(out, headerTag...)
	out = append(out, padded...)
	out = append(out, bodyTag...)
	return out, nil
}

// ReadAck reads exactly size+2 bytes of an incoming ack from r: the 2-byte
// big-endian size prefix, then size bytes of ECIES-wrapped ack body. Unlike
// a fixed-size short read, this loops until the full record has arrived —
// an ack can legitimately be larger than a single read(2) call returns.
func ReadAck(r io.Reader) ([]byte, error) {
	sizeBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return nil, fmt.Errorf("%w: reading ack size: %v", rlpxerr.ErrMalformedAck, err)
	}
	size := binary.BigEndian.Uint16(sizeBuf)
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: reading ack body: %v", rlpxerr.ErrMalformedAck, err)
	}
	log.Debug("rlpx: read ack", "size", size)
	return append(sizeBuf, body...), nil
}

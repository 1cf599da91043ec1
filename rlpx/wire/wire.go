// Package wire holds the positionally RLP-encoded records the handshake
// exchanges: the auth/ack bodies, the Hello capability frame, and the
// discovery PING packet. Each type's fields are declared in wire order and
// left to github.com/ethereum/go-ethereum/rlp's struct encoder, which
// serializes exported fields positionally — this is the teacher's own
// codec, used here as an external dependency rather than a from-scratch
// implementation of RLP.
package wire

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// AuthBody is the plaintext wrapped by the auth ECIES envelope.
type AuthBody struct {
	Signature       []byte
	InitiatorPubkey []byte
	InitiatorNonce  []byte
	Version         uint
}

// AckBody is the plaintext wrapped by the ack ECIES envelope. Only the
// first two elements are meaningful to this client; Rest absorbs whatever
// a newer peer appends without failing decode, matching the "optional
// trailing elements ignored" contract.
type AckBody struct {
	RemoteEphemeralPubkey []byte
	RemoteNonce           []byte
	Version               uint
	Rest                  []rlp.RawValue `rlp:"tail"`
}

// HelloPrefix is the message-id wrapper that precedes the Hello payload in
// an RLPx frame body. It is not itself a list: RLP-encoding a HelloPrefix
// produces the bare integer, since a defined (non-struct, non-slice) type
// encodes as its underlying scalar.
type HelloPrefix uint

// Protocol names a single capability offered in Hello.
type Protocol struct {
	Name    string
	Version uint
}

// Hello is the first application-layer message sent after the handshake
// completes.
type Hello struct {
	ProtocolVersion uint
	ClientID        string
	Caps            []Protocol
	ListenPort      uint
	NodeID          []byte
}

// CapHeader is the small RLP record packed into the 16-byte frame header,
// identifying which capability/context a frame belongs to. This client
// only ever sends cap 0 / context 0 (the base "p2p" protocol).
type CapHeader struct {
	CapID     uint
	ContextID uint
}

// Endpoint is a discovery-protocol network endpoint.
type Endpoint struct {
	IP      string
	UDPPort uint16
	TCPPort uint16
}

// Ping is the discovery v4 PING packet body.
type Ping struct {
	Version    uint
	From       Endpoint
	To         Endpoint
	Expiration uint64
}

// EncodeAuthBody RLP-encodes an AuthBody.
func EncodeAuthBody(b *AuthBody) ([]byte, error) {
	return rlp.EncodeToBytes(b)
}

// DecodeAckBody RLP-decodes the plaintext ack payload. Only the leading RLP
// list is decoded; the random padding that follows it is ignored.
func DecodeAckBody(data []byte) (AckBody, error) {
	var body AckBody
	_, _, rest, err := rlp.Split(data)
	if err != nil {
		return body, err
	}
	err = rlp.DecodeBytes(data[:len(data)-len(rest)], &body)
	return body, err
}

// EncodeHelloPrefix RLP-encodes the message-id wrapper for Hello (always 0).
func EncodeHelloPrefix() ([]byte, error) {
	return rlp.EncodeToBytes(HelloPrefix(0))
}

// EncodeHello RLP-encodes a Hello record.
func EncodeHello(h *Hello) ([]byte, error) {
	return rlp.EncodeToBytes(h)
}

// EncodeCapHeader RLP-encodes a CapHeader.
func EncodeCapHeader(h *CapHeader) ([]byte, error) {
	return rlp.EncodeToBytes(h)
}

// EncodePing RLP-encodes a discovery Ping record.
func EncodePing(p *Ping) ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

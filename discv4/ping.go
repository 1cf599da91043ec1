// Package discv4 builds and sends the discovery v4 PING packet and
// classifies the response. It shares the signing/hashing toolkit with rlpx
// but is otherwise stateless: no table management, no ENR handling, one
// datagram out and one in.
package discv4

import (
	"fmt"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/fjl/rlpx-dial/crypto"
	"github.com/fjl/rlpx-dial/rlpx/wire"
	"github.com/fjl/rlpx-dial/rlpxerr"
)

const (
	pingPacketType = 0x01
	pongPacketType = 0x02
	pongTypeOffset = 32 + 65 // past hash[32] and signature[65]
	expirationSpan = 420 * time.Second
	pingVersion    = 4
)

// BuildPing constructs the on-wire PING packet
// (hash[32] || signature[65] || 0x01 || rlp(Ping)) for the given from/to
// endpoints. The signing key is freshly generated for every call, so the
// packet is not attributable to a persistent node identity; strict peers
// may discard the resulting PONG. Reachability stays observational either
// way, so the weaker attribution is accepted rather than worked around.
func BuildPing(from, to wire.Endpoint) ([]byte, error) {
	signingKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}
	log.Debug("discv4: signing PING with a fresh ephemeral key, not a stable node identity")

	ping := &wire.Ping{
		Version:    pingVersion,
		From:       from,
		To:         to,
		Expiration: uint64(time.Now().Add(expirationSpan).Unix()),
	}
	packetData, err := wire.EncodePing(ping)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}

	toSign := append([]byte{pingPacketType}, packetData...)
	digest := crypto.Keccak256(toSign)
	sig, err := crypto.Sign(digest, signingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rlpxerr.ErrCryptoBackend, err)
	}

	signed := append(append([]byte(nil), sig...), toSign...)
	hash := crypto.Keccak256(signed)

	out := make([]byte, 0, 32+len(signed))
	out = append(out, hash...)
	out = append(out, signed...)
	return out, nil
}

// IsPong reports whether a received datagram is a PONG: its byte at offset
// 97 (past the 32-byte hash and 65-byte signature of the response) equals
// 0x02. No signature verification is performed, matching the handshake
// client's trust model for this observational check.
func IsPong(datagram []byte) bool {
	return len(datagram) > pongTypeOffset && datagram[pongTypeOffset] == pongPacketType
}

// Send transmits a PING to addr over UDP and waits up to timeout for any
// reply, reporting reachability via IsPong. A missing or malformed PONG is
// not treated as fatal by the caller — the handshake proceeds regardless,
// per the precondition rule that PING success is observational only.
func Send(addr *net.UDPAddr, from, to wire.Endpoint, timeout time.Duration) (bool, error) {
	packet, err := BuildPing(from, to)
	if err != nil {
		return false, err
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return false, rlpxerr.WrapTransport(err)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP(packet, addr); err != nil {
		return false, rlpxerr.WrapTransport(err)
	}
	log.Debug("discv4: sent PING", "addr", addr)

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, rlpxerr.WrapTransport(err)
	}
	buf := make([]byte, 1280)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		log.Debug("discv4: no PONG received", "err", err)
		return false, nil
	}
	ok := IsPong(buf[:n])
	log.Debug("discv4: PONG classification", "ok", ok)
	return ok, nil
}

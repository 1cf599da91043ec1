package discv4

import (
	"bytes"
	"testing"

	"github.com/fjl/rlpx-dial/crypto/keccak"
	"github.com/fjl/rlpx-dial/rlpx/wire"
)

func testEndpoints() (wire.Endpoint, wire.Endpoint) {
	from := wire.Endpoint{IP: "127.0.0.1", UDPPort: 30303, TCPPort: 30303}
	to := wire.Endpoint{IP: "127.0.0.1", UDPPort: 30303, TCPPort: 0}
	return from, to
}

func TestBuildPingPacketLayout(t *testing.T) {
	from, to := testEndpoints()
	packet, err := BuildPing(from, to)
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	if len(packet) < 32+65+1 {
		t.Fatalf("packet too short: %d bytes", len(packet))
	}
	if packet[32+65] != pingPacketType {
		t.Fatalf("packet type byte = %#x, want 0x01", packet[32+65])
	}

	// hash = keccak256(signature || packet_type || rlp(packet_data)), i.e.
	// the hash of everything after the first 32 bytes.
	want := keccak.Sum256(packet[32:])
	if !bytes.Equal(packet[:32], want[:]) {
		t.Fatalf("hash prefix mismatch: got %x want %x", packet[:32], want)
	}
}

func TestBuildPingIsNotDeterministicAcrossCalls(t *testing.T) {
	from, to := testEndpoints()
	p1, err := BuildPing(from, to)
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	p2, err := BuildPing(from, to)
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	// Every call signs with a fresh random key, so the signature (and hence
	// the whole packet) differs even for identical endpoints/expiration.
	if bytes.Equal(p1, p2) {
		t.Fatal("expected distinct packets across calls with fresh ephemeral signing keys")
	}
}

func TestIsPong(t *testing.T) {
	datagram := make([]byte, pongTypeOffset+1)
	datagram[pongTypeOffset] = 0x02
	if !IsPong(datagram) {
		t.Fatal("expected IsPong to report true for type byte 0x02")
	}

	datagram[pongTypeOffset] = 0x01
	if IsPong(datagram) {
		t.Fatal("expected IsPong to report false for non-PONG type byte")
	}
}

func TestIsPongRejectsShortDatagram(t *testing.T) {
	if IsPong(make([]byte, pongTypeOffset)) {
		t.Fatal("expected IsPong to report false for a too-short datagram")
	}
}

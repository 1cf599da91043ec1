package bytesutil

import (
	"bytes"
	"testing"

	"github.com/fjl/rlpx-dial/crypto/secp256k1"
)

func TestXORInvolution(t *testing.T) {
	a := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	b := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	if got := XOR(XOR(a, b), b); !bytes.Equal(got, a) {
		t.Fatalf("XOR(XOR(a,b),b) = %x, want %x", got, a)
	}
}

func TestXORTruncatesToShorter(t *testing.T) {
	a := []byte{1, 2, 3, 4, 5}
	b := []byte{9, 9}
	got := XOR(a, b)
	if len(got) != 2 {
		t.Fatalf("len(XOR) = %d, want 2", len(got))
	}
	if !bytes.Equal(got, []byte{1 ^ 9, 2 ^ 9}) {
		t.Fatalf("XOR mismatch: %x", got)
	}
}

func TestAlign16(t *testing.T) {
	cases := map[int]int{0: 0, 1: 16, 15: 16, 16: 16, 17: 32, 31: 32, 32: 32}
	for n, want := range cases {
		if got := Align16(n); got != want {
			t.Fatalf("Align16(%d) = %d, want %d", n, got, want)
		}
	}
	for n := 0; n < 200; n++ {
		got := Align16(n)
		if got%16 != 0 {
			t.Fatalf("Align16(%d) = %d is not a multiple of 16", n, got)
		}
		if got-n >= 16 {
			t.Fatalf("Align16(%d) = %d overshoots by >= 16", n, got)
		}
	}
}

func TestNonceFreshness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		n, err := Nonce()
		if err != nil {
			t.Fatalf("Nonce() error: %v", err)
		}
		if len(n) != 32 {
			t.Fatalf("Nonce() length = %d, want 32", len(n))
		}
		key := string(n)
		if seen[key] {
			t.Fatalf("duplicate nonce generated")
		}
		seen[key] = true
	}
}

func TestIDToPubkeyRoundTrip(t *testing.T) {
	id := make([]byte, 64)
	for i := range id {
		id[i] = byte(i)
	}
	pk := IDToPubkey(id)
	if len(pk) != 65 {
		t.Fatalf("len(IDToPubkey) = %d, want 65", len(pk))
	}
	if pk[0] != 0x04 {
		t.Fatalf("IDToPubkey[0] = %x, want 0x04", pk[0])
	}
	if !bytes.Equal(pk[1:], id) {
		t.Fatalf("IDToPubkey did not preserve the id bytes")
	}
}

func TestPublicKeyFromPrivateDeterministic(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 1
	pub1, err := PublicKeyFromPrivate(priv)
	if err != nil {
		t.Fatalf("PublicKeyFromPrivate error: %v", err)
	}
	if len(pub1) != 64 {
		t.Fatalf("len(pub) = %d, want 64", len(pub1))
	}
	pub2, err := PublicKeyFromPrivate(priv)
	if err != nil {
		t.Fatalf("PublicKeyFromPrivate error: %v", err)
	}
	if !bytes.Equal(pub1, pub2) {
		t.Fatalf("PublicKeyFromPrivate is not deterministic")
	}
}

func TestPublicKeyFromPrivateRejectsZero(t *testing.T) {
	if _, err := PublicKeyFromPrivate(make([]byte, 32)); err == nil {
		t.Fatal("expected error for zero private key")
	}
}

func TestPublicKeyFromPrivateMatchesSecp256k1(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 2
	pub, err := PublicKeyFromPrivate(priv)
	if err != nil {
		t.Fatalf("PublicKeyFromPrivate error: %v", err)
	}
	full, err := secp256k1.GeneratePubKey(priv)
	if err != nil {
		t.Fatalf("GeneratePubKey error: %v", err)
	}
	if !bytes.Equal(pub, full[1:]) {
		t.Fatalf("PublicKeyFromPrivate disagrees with secp256k1.GeneratePubKey")
	}
}

// Package rlpxerr defines the error taxonomy shared by every layer of the
// handshake client, mirroring the sentinel-error idiom the teacher's own
// crypto/ecies package uses (ErrInvalidPublicKey, ErrSharedKeyTooBig, ...).
package rlpxerr

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidKey signals malformed private or public key material.
	ErrInvalidKey = errors.New("rlpx: invalid key material")
	// ErrCryptoBackend signals a failure inside the pluggable crypto backend.
	ErrCryptoBackend = errors.New("rlpx: crypto backend error")
	// ErrMalformedAck signals an RLP or length error while parsing the ack.
	ErrMalformedAck = errors.New("rlpx: malformed ack")
	// ErrStateError signals a handshake method called out of order.
	ErrStateError = errors.New("rlpx: handshake called out of order")
	// ErrOversizeFrame signals a frame body too large for the 24-bit length field.
	ErrOversizeFrame = errors.New("rlpx: frame body exceeds 24-bit length field")
	// ErrHexDecode signals malformed hex input on the CLI surface.
	ErrHexDecode = errors.New("rlpx: invalid hex input")
	// ErrIO signals a transport (socket read/write/dial) failure.
	ErrIO = errors.New("rlpx: transport error")
	// ErrTimeout signals a transport-reported deadline exceeded.
	ErrTimeout = errors.New("rlpx: transport timeout")
)

// AsExitCode maps an error from this taxonomy to a process exit code for the
// CLI entrypoint. Unknown errors get a generic failure code.
func AsExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidKey):
		return 2
	case errors.Is(err, ErrCryptoBackend):
		return 3
	case errors.Is(err, ErrMalformedAck):
		return 4
	case errors.Is(err, ErrStateError):
		return 5
	case errors.Is(err, ErrOversizeFrame):
		return 6
	case errors.Is(err, ErrHexDecode):
		return 7
	case errors.Is(err, ErrTimeout):
		return 8
	case errors.Is(err, ErrIO):
		return 9
	default:
		return 1
	}
}

// WrapTransport classifies a socket dial/read/write failure into this
// taxonomy: a net.Error reporting Timeout() becomes ErrTimeout, anything
// else becomes the generic ErrIO. Both the TCP handshake path and the UDP
// discovery PING use this to keep transport failures distinct from
// ErrCryptoBackend, which is reserved for primitive failures.
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// Command rlpx-dial PINGs a devp2p node over UDP, then dials it over TCP
// and runs the RLPx encrypted handshake through the first "Hello" frame,
// holding the connection open for up to five seconds (less if a reply frame
// arrives sooner) before exiting.
package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/fjl/rlpx-dial/cryptobackend"
	"github.com/fjl/rlpx-dial/discv4"
	"github.com/fjl/rlpx-dial/rlpx"
	"github.com/fjl/rlpx-dial/rlpx/wire"
	"github.com/fjl/rlpx-dial/rlpxerr"
)

// localPrivateKeyHex is the fixed key used for testing, matching the
// embedded-constant contract: production use requires real key
// provisioning via a config file or flag, which is out of scope here.
const localPrivateKeyHex = "1111111111111111111111111111111111111111111111111111111111111111"

const pingTimeout = 2 * time.Second
const holdOpen = 5 * time.Second

var app = &cli.App{
	Name:  "rlpx-dial",
	Usage: "PING a devp2p node, then run the RLPx handshake against it",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "remote-id",
			Usage:    "128-character hex encoding of the peer's 64-byte node ID",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "peer IP address",
			Value: "127.0.0.1",
		},
		&cli.UintFlag{
			Name:  "port",
			Usage: "peer TCP/UDP port",
			Value: 30303,
		},
	},
	Action: run,
}

func main() {
	log.Root().SetHandler(log.StreamHandler(os.Stderr, log.TerminalFormat(true)))
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "rlpx-dial:", err)
		os.Exit(rlpxerr.AsExitCode(err))
	}
}

func run(c *cli.Context) error {
	remoteIDHex := c.String("remote-id")
	address := c.String("address")
	port := uint16(c.Uint("port"))

	remoteID, err := hex.DecodeString(remoteIDHex)
	if err != nil || len(remoteID) != 64 {
		return fmt.Errorf("%w: --remote-id must be 128 hex characters (64 bytes)", rlpxerr.ErrHexDecode)
	}

	localPriv, err := hex.DecodeString(localPrivateKeyHex)
	if err != nil {
		return fmt.Errorf("%w: %v", rlpxerr.ErrInvalidKey, err)
	}

	udpAddr := &net.UDPAddr{IP: net.ParseIP(address), Port: int(port)}
	from := wire.Endpoint{IP: "0.0.0.0", UDPPort: port, TCPPort: port}
	to := wire.Endpoint{IP: address, UDPPort: port, TCPPort: 0}

	reachable, err := discv4.Send(udpAddr, from, to, pingTimeout)
	if err != nil {
		log.Warn("PING failed", "err", err)
	} else {
		log.Info("PING result", "reachable", reachable)
	}

	tcpAddr := net.JoinHostPort(address, fmt.Sprint(port))
	conn, err := net.DialTimeout("tcp", tcpAddr, 10*time.Second)
	if err != nil {
		return rlpxerr.WrapTransport(fmt.Errorf("dial %s: %w", tcpAddr, err))
	}
	defer conn.Close()

	backend := cryptobackend.New()
	sess, err := rlpx.NewSession(backend, localPriv, remoteID)
	if err != nil {
		return err
	}

	authBytes, err := sess.GetAuth()
	if err != nil {
		return err
	}
	if _, err := conn.Write(authBytes); err != nil {
		return rlpxerr.WrapTransport(fmt.Errorf("writing auth: %w", err))
	}
	log.Debug("rlpx: sent auth", "bytes", len(authBytes))

	ackRaw, err := rlpx.ReadAck(conn)
	if err != nil {
		return err
	}
	secure, err := sess.ParseAck(ackRaw)
	if err != nil {
		return err
	}
	log.Info("rlpx: handshake secrets derived")

	helloFrame, err := secure.GetHello(port)
	if err != nil {
		return err
	}
	if _, err := conn.Write(helloFrame); err != nil {
		return rlpxerr.WrapTransport(fmt.Errorf("writing hello: %w", err))
	}
	log.Debug("rlpx: sent hello", "bytes", len(helloFrame))

	// The only externally defined timeout past this point is a fixed 5s
	// hold-open: one deadline-bounded read for a reply frame, not an
	// additional sleep on top of it.
	log.Info("rlpx: holding connection open", "duration", holdOpen)
	reply := make([]byte, 4096)
	if err := conn.SetReadDeadline(time.Now().Add(holdOpen)); err == nil {
		n, err := conn.Read(reply)
		if err != nil {
			log.Debug("rlpx: no reply frame read", "err", err)
		} else {
			log.Info("rlpx: received reply frame", "bytes", n)
		}
	}
	return nil
}

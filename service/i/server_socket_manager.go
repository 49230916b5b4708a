package i

import (
	"net"

	"github.com/beka-birhanu/vinom-treasure/udp"
)

// ServerSocketManager manages the server-side datagram socket.
type ServerSocketManager interface {
	// SetDatagramHandler sets the function called for every received datagram.
	// Datagrams are handed over one at a time, in arrival order.
	SetDatagramHandler(udp.DatagramHandler)

	// SendToAddr sends one datagram to addr.
	SendToAddr(addr *net.UDPAddr, message []byte) error

	// BroadcastToAddrs sends the same datagram to every address.
	BroadcastToAddrs(addrs []*net.UDPAddr, message []byte)

	Serve()
	Stop()

	// GetAddr returns the server's socket address.
	GetAddr() string
}

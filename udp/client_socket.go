package udp

import (
	"errors"
	"net"
	"sync"

	"github.com/beka-birhanu/vinom-treasure/game"
	"go.uber.org/zap"
)

const ackBacklog int = 16

// ResponseHandler receives every non-acknowledgment datagram from the server.
type ResponseHandler func(payload []byte)

type ClientOption func(*ClientSocketManager)

// ClientConfig holds the required parameters of a ClientSocketManager.
type ClientConfig struct {
	ServerAddr       *net.UDPAddr    // Server to talk to.
	LocalAddr        *net.UDPAddr    // Local address to bind; nil picks an ephemeral port.
	Encoder          game.Encoder    // Used to tell acknowledgments apart from snapshots.
	OnServerResponse ResponseHandler // Called for snapshots and anything else that is not an ack.
}

// ClientSocketManager owns the client's UDP socket. Acknowledgments are
// delivered on Acks, every other datagram from the server goes to the
// response handler. Datagrams from any other peer are ignored.
type ClientSocketManager struct {
	serverAddr       *net.UDPAddr
	conn             *net.UDPConn
	encoder          game.Encoder
	onServerResponse ResponseHandler
	acks             chan uint32
	readBufferSize   int
	logger           *zap.SugaredLogger
	stopOnce         sync.Once
	wg               sync.WaitGroup
}

// NewClientSocketManager binds the local address and starts receiving.
func NewClientSocketManager(c ClientConfig, options ...ClientOption) (*ClientSocketManager, error) {
	conn, err := net.ListenUDP("udp", c.LocalAddr)
	if err != nil {
		return nil, err
	}

	m := &ClientSocketManager{
		serverAddr:       c.ServerAddr,
		conn:             conn,
		encoder:          c.Encoder,
		onServerResponse: c.OnServerResponse,
		acks:             make(chan uint32, ackBacklog),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.readBufferSize <= 0 {
		m.readBufferSize = DefaultDatagramSize
	}
	if m.logger == nil {
		m.logger = zap.NewNop().Sugar()
	}

	m.wg.Add(1)
	go m.receive()

	return m, nil
}

// Send writes one datagram to the server.
func (m *ClientSocketManager) Send(b []byte) error {
	_, err := m.conn.WriteToUDP(b, m.serverAddr)
	return err
}

// Acks returns the channel of acknowledged sequence numbers. It is closed when the socket stops.
func (m *ClientSocketManager) Acks() <-chan uint32 {
	return m.acks
}

// LocalAddr returns the bound address.
func (m *ClientSocketManager) LocalAddr() *net.UDPAddr {
	return m.conn.LocalAddr().(*net.UDPAddr)
}

// Stop closes the socket and waits for the receive goroutine to exit.
func (m *ClientSocketManager) Stop() {
	m.stopOnce.Do(func() {
		_ = m.conn.Close()
		m.wg.Wait()
	})
}

func (m *ClientSocketManager) receive() {
	defer m.wg.Done()
	defer close(m.acks)

	buf := make([]byte, m.readBufferSize+1) // one spare byte exposes truncated datagrams
	for {
		n, addr, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			m.logger.Warnf("error while reading from udp: %s", err)
			continue
		}

		if !sameAddr(addr, m.serverAddr) {
			m.logger.Debugf("ignoring datagram from unknown peer %s", addr)
			continue
		}
		if n > m.readBufferSize {
			m.logger.Warnf("dropping datagram from %s: %s", addr, ErrMaximumPayloadSizeLimit)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		if seq, err := m.encoder.UnmarshalAck(payload); err == nil {
			select {
			case m.acks <- seq:
			default:
				m.logger.Debugf("ack backlog full, dropping ACK:%d", seq)
			}
			continue
		}

		if m.onServerResponse != nil {
			m.onServerResponse(payload)
		}
	}
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

// ClientWithReadBufferSize sets the read buffer size option
func ClientWithReadBufferSize(i int) ClientOption {
	return func(m *ClientSocketManager) {
		m.readBufferSize = i
	}
}

// ClientWithLogger sets the logger
func ClientWithLogger(l *zap.SugaredLogger) ClientOption {
	return func(m *ClientSocketManager) {
		m.logger = l
	}
}

package udp

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DatagramHandler is called, one datagram at a time, for every payload received by the server socket.
type DatagramHandler func(payload []byte, addr *net.UDPAddr)

type ServerOption func(*ServerSocketManager)

// Custom error types
var (
	ErrMaximumPayloadSizeLimit = errors.New("maximum payload size limit")
	ErrEmptyPayload            = errors.New("empty payload")
)

// DefaultDatagramSize is the largest payload either side accepts unless configured otherwise.
const DefaultDatagramSize int = 1024

const rawRecordsBacklog int = 64

// rawRecord is sent to the rawRecords channel when a new payload is received
type rawRecord struct {
	payload []byte
	addr    *net.UDPAddr
}

// ServerSocketManager owns the listening UDP socket. A single goroutine reads
// datagrams and a single goroutine hands them to the handler, so the handler
// never runs concurrently with itself.
type ServerSocketManager struct {
	readBufferSize int                             // Maximum buffer size for incoming bytes.
	conn           *net.UDPConn                    // Connection to listen to.
	onDatagram     atomic.Pointer[DatagramHandler] // Called for every accepted datagram.
	rawRecords     chan rawRecord                  // Channel for raw records.
	logger         *zap.SugaredLogger              // Logger.
	served         atomic.Bool                     // Set once Serve has started or Stop ran first.
	stopOnce       sync.Once                       // Guards Stop.
	wg             sync.WaitGroup                  // WaitGroup to manage server goroutines.
}

// ServerConfig is a struct used to pass the required parameters to initialize a new ServerSocketManager
type ServerConfig struct {
	ListenAddr *net.UDPAddr    // UDP address to listen on.
	OnDatagram DatagramHandler // Handler for incoming datagrams, may also be set with ServerWithDatagramHandler.
}

// NewServerSocketManager binds the listen address. A bind failure is returned
// to the caller, which cannot proceed without its socket.
func NewServerSocketManager(c ServerConfig, options ...ServerOption) (*ServerSocketManager, error) {
	conn, err := net.ListenUDP("udp", c.ListenAddr)
	if err != nil {
		return nil, err
	}

	s := &ServerSocketManager{
		conn:       conn,
		rawRecords: make(chan rawRecord, rawRecordsBacklog),
	}
	if c.OnDatagram != nil {
		s.SetDatagramHandler(c.OnDatagram)
	}

	// Run optional configurations
	for _, opt := range options {
		opt(s)
	}

	if s.readBufferSize <= 0 {
		s.readBufferSize = DefaultDatagramSize
	}

	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}

	s.wg.Add(1)
	go s.handleRawRecords()

	return s, nil
}

// Serve reads datagrams until Stop is called. It blocks and may only run once.
func (s *ServerSocketManager) Serve() {
	if !s.served.CompareAndSwap(false, true) {
		return
	}
	defer close(s.rawRecords)

	s.logger.Infof("server listening on udp address: %v", s.conn.LocalAddr().String())
	for {
		buf := make([]byte, s.readBufferSize+1) // Intentionally create more space than allowed for checking
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			s.logger.Warnf("error while reading from udp: %s", err)
			continue
		}

		if n > s.readBufferSize {
			s.logger.Debugf("dropping datagram from %s: %s", addr, ErrMaximumPayloadSizeLimit)
			continue
		}
		if n == 0 {
			s.logger.Debugf("dropping datagram from %s: %s", addr, ErrEmptyPayload)
			continue
		}

		s.rawRecords <- rawRecord{
			payload: buf[:n],
			addr:    addr,
		}
	}
}

// Stop closes the socket and waits for the handler goroutine to drain.
func (s *ServerSocketManager) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("server stopping gracefully...")
		defer s.logger.Info("server stopped")

		_ = s.conn.Close()
		if s.served.CompareAndSwap(false, true) {
			close(s.rawRecords)
		}
		s.wg.Wait()
	})
}

func (s *ServerSocketManager) handleRawRecords() {
	defer s.wg.Done()
	for r := range s.rawRecords {
		if h := s.onDatagram.Load(); h != nil {
			(*h)(r.payload, r.addr)
		}
	}
}

// SetDatagramHandler sets the handler for incoming datagrams. Datagrams
// received while no handler is set are dropped.
func (s *ServerSocketManager) SetDatagramHandler(f DatagramHandler) {
	s.onDatagram.Store(&f)
}

// SendToAddr sends a message byte array to the address given.
func (s *ServerSocketManager) SendToAddr(addr *net.UDPAddr, message []byte) error {
	_, err := s.conn.WriteToUDP(message, addr)
	return err
}

// BroadcastToAddrs sends the same message to every address, in order, on the calling goroutine.
func (s *ServerSocketManager) BroadcastToAddrs(addrs []*net.UDPAddr, message []byte) {
	for _, addr := range addrs {
		if err := s.SendToAddr(addr, message); err != nil {
			s.logger.Warnf("error while writing to %s: %s", addr, err)
		}
	}
}

// GetAddr returns the server's socket address.
func (s *ServerSocketManager) GetAddr() string {
	return s.conn.LocalAddr().String()
}

// LocalAddr returns the bound UDP address, useful when listening on port 0.
func (s *ServerSocketManager) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// ServerWithDatagramHandler sets the callback invoked for each incoming datagram
func ServerWithDatagramHandler(f DatagramHandler) ServerOption {
	return func(s *ServerSocketManager) {
		s.SetDatagramHandler(f)
	}
}

// ServerWithReadBufferSize sets the read buffer size option
func ServerWithReadBufferSize(i int) ServerOption {
	return func(s *ServerSocketManager) {
		s.readBufferSize = i
	}
}

// ServerWithLogger sets the logger
func ServerWithLogger(l *zap.SugaredLogger) ServerOption {
	return func(s *ServerSocketManager) {
		s.logger = l
	}
}

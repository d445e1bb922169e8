package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/warden/pkg/warden/types"
)

// Transport names.
const (
	NetworkTCP = "tcp"
	NetworkUDP = "udp"
)

const defaultMaxMessageSize = 64 << 10

// ErrServerClosed is returned by Start after Close.
var ErrServerClosed = errors.New("event server closed")

// Sink consumes decoded infractions.
type Sink interface {
	Put(inf *types.Infraction)
}

// Observer is notified of every message outcome.
type Observer interface {
	EventReceived(transport string)
	EventRejected(transport string)
}

// Config configures a Server.
type Config struct {
	// Network is "tcp" or "udp". Default: tcp
	Network string

	// Address to bind, e.g. ":9000". Port 0 picks a free port.
	Address string

	// MaxMessageSize bounds one UDP datagram. Default: 64KiB
	MaxMessageSize int

	// IdleTimeout closes TCP connections silent for this long. Zero
	// disables the timeout.
	IdleTimeout time.Duration
}

// Server listens for pushed infractions.
type Server struct {
	cfg      Config
	sink     Sink
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	packet   net.PacketConn
	conns    map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithObserver reports message outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// NewServer creates a server writing to sink.
func NewServer(cfg Config, sink Sink, opts ...Option) (*Server, error) {
	if sink == nil {
		return nil, errors.New("event server requires a sink")
	}
	if cfg.Network == "" {
		cfg.Network = NetworkTCP
	}
	if cfg.Network != NetworkTCP && cfg.Network != NetworkUDP {
		return nil, fmt.Errorf("unsupported event network %q", cfg.Network)
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	s := &Server{
		cfg:    cfg,
		sink:   sink,
		logger: slog.Default(),
		conns:  make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "event_server", "network", cfg.Network)
	return s, nil
}

// Start binds the configured address and serves in the background. It
// returns once the socket is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil || s.packet != nil {
		return errors.New("event server already started")
	}

	var lc net.ListenConfig
	switch s.cfg.Network {
	case NetworkTCP:
		ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
		if err != nil {
			return fmt.Errorf("listen tcp %s: %w", s.cfg.Address, err)
		}
		s.listener = ln
		s.wg.Add(1)
		go s.acceptLoop(ln)
	case NetworkUDP:
		pc, err := lc.ListenPacket(ctx, "udp", s.cfg.Address)
		if err != nil {
			return fmt.Errorf("listen udp %s: %w", s.cfg.Address, err)
		}
		s.packet = pc
		s.wg.Add(1)
		go s.packetLoop(pc)
	}

	s.logger.Info("event server listening", "address", s.addrLocked())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addrLocked()
}

func (s *Server) addrLocked() net.Addr {
	switch {
	case s.listener != nil:
		return s.listener.Addr()
	case s.packet != nil:
		return s.packet.LocalAddr()
	}
	return nil
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	switch addr := s.Addr().(type) {
	case *net.TCPAddr:
		return addr.Port
	case *net.UDPAddr:
		return addr.Port
	}
	return 0
}

// Close stops accepting, closes open connections and waits for handlers
// to return until ctx is done.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var errs []error
	if s.listener != nil {
		errs = append(errs, s.listener.Close())
	}
	if s.packet != nil {
		errs = append(errs, s.packet.Close())
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("event handlers still running after close deadline")
		errs = append(errs, fmt.Errorf("close event server: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	logger := s.logger.With("conn_id", uuid.NewString(), "remote", conn.RemoteAddr().String())
	logger.Debug("event connection opened")

	reader := &idleReader{conn: conn, timeout: s.cfg.IdleTimeout}
	dec := json.NewDecoder(reader)

	for {
		var inf types.Infraction
		err := dec.Decode(&inf)
		if err == nil {
			s.deliver(&inf)
			continue
		}

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			logger.Debug("event connection closed")
		case isTimeout(err):
			logger.Debug("event connection idle, closing")
		default:
			logger.Warn("malformed event, closing connection", "error", err)
			s.reject(NetworkTCP)
		}
		return
	}
}

func (s *Server) packetLoop(pc net.PacketConn) {
	defer s.wg.Done()

	buf := make([]byte, s.cfg.MaxMessageSize)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("read datagram failed", "error", err)
			continue
		}

		var inf types.Infraction
		if err := json.Unmarshal(buf[:n], &inf); err != nil {
			s.logger.Warn("malformed event datagram", "from", from.String(), "error", err)
			s.reject(NetworkUDP)
			continue
		}
		s.deliver(&inf)
	}
}

func (s *Server) deliver(inf *types.Infraction) {
	s.logger.Debug("infraction received", "policy_id", inf.PolicyID, "user", inf.Username)
	s.sink.Put(inf)
	if s.observer != nil {
		s.observer.EventReceived(s.cfg.Network)
	}
}

func (s *Server) reject(transport string) {
	if s.observer != nil {
		s.observer.EventRejected(transport)
	}
}

// idleReader refreshes the read deadline before every read.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	}
	return r.conn.Read(p)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

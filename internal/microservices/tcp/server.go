package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"stockhub/internal/metrics"
	"stockhub/internal/protocol"
)

const (
	DefaultIdleTimeout  = 60 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultRateLimit    = 10 // frames per second
	DefaultRateBurst    = 20
)

const msgShuttingDown = "server is shutting down"

// Options tunes connections and carries the shared collaborators.
// Zero values fall back to the defaults above.
type Options struct {
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrameSize int
	RateLimit    float64
	RateBurst    int

	Logger   *slog.Logger
	Metrics  *metrics.Metrics // may be nil
	Presence Presence         // may be nil
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.RateBurst <= 0 {
		o.RateBurst = DefaultRateBurst
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// TCPServer accepts connections and runs one ClientConnection per socket.
type TCPServer struct {
	Addr string
	// shared by every connection goroutine
	Manager *ConnectionManager

	dispatcher *Dispatcher
	auth       Authenticator
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	quitChan chan struct{} // closed on Stop
	stopOnce sync.Once
	wg       sync.WaitGroup // connection goroutines
}

// constructor for Server
func NewServer(addr string, backend Backend, opts Options) *TCPServer {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		Addr:       addr,
		Manager:    NewConnectionManager(opts.Logger, opts.Presence, opts.Metrics),
		dispatcher: NewDispatcher(backend, opts.Logger, opts.Metrics),
		auth:       backend,
		opts:       opts,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
		quitChan:   make(chan struct{}),
	}
}

// Start listens on Addr and serves until Stop.
func (s *TCPServer) Start() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server, error: %w", err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on l until Stop. It returns nil after a clean stop.
func (s *TCPServer) Serve(l net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.quitChan:
		s.mu.Unlock()
		l.Close()
		return nil
	default:
	}
	s.listener = l
	s.mu.Unlock()
	defer l.Close()

	s.logger.Info("tcp_server_started", "addr", l.Addr().String())

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("failed_to_accept_connection", "error", err.Error())
			continue
		}
		s.mu.Lock()
		select {
		case <-s.quitChan:
			s.mu.Unlock()
			conn.Close()
			return nil
		default:
		}
		s.wg.Add(1)
		s.mu.Unlock()
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(conn)
		}(conn)
	}
}

// handle connections/lifecycle of single client connection
func (s *TCPServer) handleConnection(conn net.Conn) {
	client := NewClientConnection(conn, s.Manager, s.dispatcher, s.auth, s.opts)
	s.Manager.AddConnection(client)
	select {
	case <-s.quitChan: // accepted while Stop was closing everything
		client.Close()
	default:
	}
	client.Listen(s.ctx) // returns after teardown, which also unregisters
}

// Stop closes the listener, warns every client, closes all connections and
// waits for their workers or for ctx.
func (s *TCPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quitChan)
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()

		s.Manager.Broadcast(protocol.NewError(msgShuttingDown))
		s.Manager.CloseAllConnections()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("tcp_server_stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

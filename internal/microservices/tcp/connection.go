package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stockhub/internal/metrics"
	"stockhub/internal/protocol"
)

const (
	msgLoginExpected = "message not valid, a login message was expected"
	msgRateLimited   = "rate limit exceeded"
	msgIdleTimeout   = "idle timeout exceeded"
	// write deadline of the goodbye notice sent on idle timeout
	noticeTimeout = time.Second
)

// ClientConnection runs the state machine of one socket:
// handshake, authenticated request/response loop, teardown.
type ClientConnection struct {
	ID         string // unique identifier, key in the manager
	conn       net.Conn
	reader     *protocol.FrameReader
	writeMu    sync.Mutex // Send is also called by broadcasts
	writer     *bufio.Writer
	manager    *ConnectionManager
	dispatcher *Dispatcher
	auth       Authenticator
	limiter    *rate.Limiter
	opts       Options
	logger     *slog.Logger
	metrics    *metrics.Metrics

	state     atomic.Int32
	session   *Session // set by ConnectionManager.Register
	closeOnce sync.Once
}

// constructor for ClientConnection
func NewClientConnection(conn net.Conn, manager *ConnectionManager, dispatcher *Dispatcher, auth Authenticator, opts Options) *ClientConnection {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return &ClientConnection{
		ID:         id,
		conn:       conn,
		reader:     protocol.NewFrameReader(conn, opts.MaxFrameSize),
		writer:     bufio.NewWriter(conn),
		manager:    manager,
		dispatcher: dispatcher,
		auth:       auth,
		// the limiter depletes tokens on Allow and refills over time
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		opts:    opts,
		logger:  opts.Logger.With("client_id", id),
		metrics: opts.Metrics,
	}
}

func (c *ClientConnection) State() State {
	return State(c.state.Load())
}

// Session returns the authenticated session, or nil before login.
func (c *ClientConnection) Session() *Session {
	return c.session
}

// Listen blocks until the connection reaches the closed state. Every exit
// path, panics included, goes through teardown.
func (c *ClientConnection) Listen(ctx context.Context) {
	defer c.teardown(ctx)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("client_panic", "panic", fmt.Sprint(r))
		}
	}()

	c.logger.Info("client_started_listening",
		"remote_addr", c.conn.RemoteAddr().String(),
	)

	if !c.handshake(ctx) {
		return
	}
	c.serve(ctx)
}

// handshake reads exactly one frame, which must be a valid login.
func (c *ClientConnection) handshake(ctx context.Context) bool {
	c.extendDeadline()
	frame, err := c.reader.ReadFrame()
	if err != nil {
		if errors.Is(err, protocol.ErrMalformedProtocol) {
			c.rejectLogin(false, "malformed", protocol.NewError(msgLoginExpected), err)
			return false
		}
		c.handleReadError(err)
		return false
	}

	msg, err := protocol.Decode(frame)
	if err != nil {
		c.rejectLogin(false, "malformed", protocol.NewError(msgLoginExpected), err)
		return false
	}
	if err := msg.AssertActionIn(protocol.LoginAsUser, protocol.LoginAsAdmin); err != nil {
		c.rejectLogin(false, "malformed", protocol.NewError(msgLoginExpected), err)
		return false
	}
	wantsAdmin := msg.Action() == protocol.LoginAsAdmin
	if err := msg.AssertOptionCount(2); err != nil {
		c.rejectLogin(wantsAdmin, "malformed", protocol.NewError(err.Error()), err)
		return false
	}

	identity, secret := msg.Option(0), msg.Option(1)
	reply := c.auth.CheckCredentials(ctx, identity, secret, wantsAdmin)
	if reply == nil {
		reply = protocol.NewError(msgInternalError)
	}
	if reply.Action() != protocol.Success {
		c.rejectLogin(wantsAdmin, "rejected", reply, errors.New(reply.Reason()))
		return false
	}

	sess := &Session{
		Identity:   identity,
		IsAdmin:    wantsAdmin,
		ClientID:   c.ID,
		RemoteAddr: c.conn.RemoteAddr().String(),
		LoggedInAt: time.Now(),
	}
	if err := c.manager.Register(ctx, c, sess); err != nil {
		c.rejectLogin(wantsAdmin, "duplicate", protocol.NewError(err.Error()), err)
		return false
	}

	if err := c.Send(reply); err != nil {
		c.logger.Warn("login_reply_failed", "error", err.Error())
		return false
	}
	c.state.Store(int32(StateAuthenticated))
	c.metrics.Login(wantsAdmin, "success")
	c.logger.Info("login_accepted",
		"identity", identity,
		"is_admin", wantsAdmin,
	)

	if err := c.auth.RecordLastLogin(ctx, identity, wantsAdmin); err != nil {
		c.logger.Warn("record_last_login_failed",
			"identity", identity,
			"error", err.Error(),
		)
	}
	return true
}

func (c *ClientConnection) rejectLogin(wantsAdmin bool, outcome string, reply *protocol.Message, cause error) {
	c.metrics.Login(wantsAdmin, outcome)
	c.logger.Warn("login_rejected",
		"outcome", outcome,
		"error", cause.Error(),
	)
	if err := c.Send(reply); err != nil {
		c.logger.Warn("login_reply_failed", "error", err.Error())
	}
}

// serve is the authenticated loop: one frame in, one reply out.
func (c *ClientConnection) serve(ctx context.Context) {
	for {
		c.extendDeadline()
		frame, err := c.reader.ReadFrame()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedProtocol) {
				if !c.replyMalformed(err) {
					return
				}
				continue
			}
			c.handleReadError(err)
			return
		}

		c.manager.Touch(ctx, c)

		msg, err := protocol.Decode(frame)
		if err != nil {
			if !c.replyMalformed(err) {
				return
			}
			continue
		}

		if msg.Action() == protocol.Disconnect {
			c.logger.Info("client_disconnect_requested")
			return
		}

		// only frames headed for the backend are throttled
		if !c.limiter.Allow() {
			c.logger.Warn("rate_limit_exceeded", "action", msg.Action().String())
			if err := c.Send(protocol.NewError(msgRateLimited)); err != nil {
				return
			}
			continue
		}

		reply := c.dispatcher.Dispatch(ctx, msg, c.session)
		if err := c.Send(reply); err != nil {
			c.logger.Warn("reply_failed", "error", err.Error())
			return
		}
	}
}

// malformed frames keep the session open
func (c *ClientConnection) replyMalformed(cause error) bool {
	c.logger.Warn("malformed_frame_received", "error", cause.Error())
	c.metrics.Frame("MALFORMED", "malformed")
	if err := c.Send(protocol.NewError(cause.Error())); err != nil {
		c.logger.Warn("reply_failed", "error", err.Error())
		return false
	}
	return true
}

func (c *ClientConnection) extendDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
}

// handleReadError logs why the transport gave up; the caller then tears down.
func (c *ClientConnection) handleReadError(err error) {
	if errors.Is(err, io.EOF) { // client hung up
		c.logger.Info("client_disconnected")
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Warn("client_read_timeout",
			"idle_timeout", c.opts.IdleTimeout.String(),
		)
		c.metrics.IdleTimeout()
		// the idle close is announced with one TIMEOUT_ERROR frame, other
		// transport faults close silently
		c.notify(protocol.NewTimeoutError(msgIdleTimeout))
		return
	}
	// expected while shutting down
	// On Windows: "wsarecv: An established connection was aborted by the software in your host machine."
	// On Linux: "use of closed network connection"
	if errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "closed network connection") ||
		strings.Contains(err.Error(), "connection was aborted") ||
		strings.Contains(err.Error(), "forcibly closed") {
		return
	}
	c.logger.Error("client_read_error", "error", err.Error())
}

// notify writes msg with a short deadline and ignores failures.
func (c *ClientConnection) notify(msg *protocol.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(noticeTimeout))
	if _, err := c.writer.WriteString(msg.String() + "\n"); err == nil {
		c.writer.Flush()
	}
}

// Send encodes msg and writes it as one line. A reply that cannot be framed
// is replaced by a generic error so the client still gets an answer.
func (c *ClientConnection) Send(msg *protocol.Message) error {
	wire, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("reply_encode_failed",
			"action", msg.Action().String(),
			"error", err.Error(),
		)
		wire = protocol.NewError(msgInternalError).String()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	//=> data + "\n" then flush to the io.Writer buffer
	if _, err := c.writer.WriteString(wire); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// teardown is the single exit path and runs once.
func (c *ClientConnection) teardown(ctx context.Context) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.manager.Unregister(ctx, c)
		c.manager.RemoveConnection(c)
		c.conn.Close()
		c.logger.Info("client_closed")
	})
}

// Close closes the socket, unblocking Listen, which then tears down.
func (c *ClientConnection) Close() {
	c.conn.Close()
}

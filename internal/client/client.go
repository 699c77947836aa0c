// Package client speaks the stockhub line protocol over TCP.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"stockhub/internal/protocol"
)

const DefaultTimeout = 10 * time.Second

// ErrLoginRejected is returned by Login when the server refuses the credentials.
var ErrLoginRejected = errors.New("login rejected")

// ServerError is an ERROR or TIMEOUT_ERROR reply.
type ServerError struct {
	Action protocol.ActionCode
	Reason string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

// Client is one connection to the server. Calls are serialized since the
// protocol allows a single request in flight.
type Client struct {
	conn    net.Conn
	reader  *protocol.FrameReader
	timeout time.Duration
	mu      sync.Mutex
}

// Dial connects to addr. timeout bounds every later read and write.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &Client{
		conn:    conn,
		reader:  protocol.NewFrameReader(conn, protocol.DefaultMaxFrameSize*8),
		timeout: timeout,
	}, nil
}

// Login sends the handshake frame. On rejection the server closes the
// connection, the client is then unusable.
func (c *Client) Login(identity, secret string, admin bool) error {
	action := protocol.LoginAsUser
	if admin {
		action = protocol.LoginAsAdmin
	}
	reply, err := c.Do(protocol.NewMessage(action, identity, secret))
	if err != nil {
		var serr *ServerError
		if errors.As(err, &serr) {
			return fmt.Errorf("%w: %s", ErrLoginRejected, serr.Reason)
		}
		return err
	}
	if reply.Action() != protocol.Success {
		return fmt.Errorf("%w: unexpected reply %s", ErrLoginRejected, reply.Action())
	}
	return nil
}

// Call builds a message from action and opts and sends it.
func (c *Client) Call(action protocol.ActionCode, opts ...string) (*protocol.Message, error) {
	return c.Do(protocol.NewMessage(action, opts...))
}

// Do sends msg and waits for the reply. An ERROR reply is returned as a *ServerError.
func (c *Client) Do(msg *protocol.Message) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(msg); err != nil {
		return nil, err
	}

	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	reply, err := c.reader.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	if reply.IsError() {
		return reply, &ServerError{Action: reply.Action(), Reason: reply.Reason()}
	}
	return reply, nil
}

func (c *Client) write(msg *protocol.Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := protocol.WriteMessage(c.conn, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Action(), err)
	}
	return nil
}

// Close sends DISCONNECT, best effort, and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write(protocol.NewMessage(protocol.Disconnect))
	return c.conn.Close()
}

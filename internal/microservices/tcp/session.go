package tcp

import (
	"context"
	"time"

	"stockhub/internal/protocol"
)

// State is the lifecycle position of one client connection.
type State int32

const (
	StateHandshake State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the identity bound to a connection after a successful login.
// It is never mutated once built.
type Session struct {
	Identity   string    `json:"identity"`
	IsAdmin    bool      `json:"is_admin"`
	ClientID   string    `json:"client_id"`
	RemoteAddr string    `json:"remote_addr"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Authenticator checks login credentials. Implementations fold every failure
// into an ERROR message; a SUCCESS reply means the login is accepted.
type Authenticator interface {
	CheckCredentials(ctx context.Context, identity, secret string, wantsAdmin bool) *protocol.Message
	RecordLastLogin(ctx context.Context, identity string, isAdmin bool) error
}

// Operations are the business actions reachable after login. Every method
// returns a reply message and never a nil one on success paths; failures are
// already ERROR messages.
type Operations interface {
	AddProduct(ctx context.Context, msg *protocol.Message) *protocol.Message
	AddProductQuantity(ctx context.Context, msg *protocol.Message) *protocol.Message
	RemoveProductQuantity(ctx context.Context, msg *protocol.Message) *protocol.Message
	RemoveProduct(ctx context.Context, msg *protocol.Message) *protocol.Message
	ValidateOrder(ctx context.Context, msg *protocol.Message) *protocol.Message
	DeleteOrder(ctx context.Context, msg *protocol.Message) *protocol.Message
	GetProductList(ctx context.Context, msg *protocol.Message) *protocol.Message
	GetOrderList(ctx context.Context, msg *protocol.Message) *protocol.Message
	GetSpecificProduct(ctx context.Context, msg *protocol.Message) *protocol.Message
	GetSpecificOrder(ctx context.Context, msg *protocol.Message) *protocol.Message
	ApplyPromotion(ctx context.Context, msg *protocol.Message) *protocol.Message
	RemovePromotion(ctx context.Context, msg *protocol.Message) *protocol.Message

	// administrator only, actor is the identity of the calling session
	GetEmployeeList(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message
	AddEmployee(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message
	RemoveEmployee(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message
}

// Backend is everything the server needs from the data layer.
type Backend interface {
	Authenticator
	Operations
}

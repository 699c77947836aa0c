package tcp

import (
	"context"
	"log/slog"
	"time"

	"stockhub/internal/metrics"
	"stockhub/internal/protocol"
)

const (
	msgActionNotRecognized = "action not recognized by the server"
	msgAdminRequired       = "this action requires administrator rights"
	msgInternalError       = "internal server error"
)

type operation func(ctx context.Context, sess *Session, msg *protocol.Message) *protocol.Message

type route struct {
	arity     int
	adminOnly bool
	op        operation
}

// Dispatcher routes authenticated, arity-checked messages to the backend.
type Dispatcher struct {
	routes  map[protocol.ActionCode]route
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(ops Operations, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		routes: map[protocol.ActionCode]route{
			protocol.AddProduct:            {arity: 3, op: anyone(ops.AddProduct)},
			protocol.AddProductQuantity:    {arity: 2, op: anyone(ops.AddProductQuantity)},
			protocol.RemoveProductQuantity: {arity: 2, op: anyone(ops.RemoveProductQuantity)},
			protocol.RemoveProduct:         {arity: 1, op: anyone(ops.RemoveProduct)},
			protocol.ValidateOrder:         {arity: 1, op: anyone(ops.ValidateOrder)},
			protocol.DeleteOrder:           {arity: 1, op: anyone(ops.DeleteOrder)},
			protocol.GetProductList:        {arity: 0, op: anyone(ops.GetProductList)},
			protocol.GetOrderList:          {arity: 0, op: anyone(ops.GetOrderList)},
			protocol.GetSpecificProduct:    {arity: 1, op: anyone(ops.GetSpecificProduct)},
			protocol.GetSpecificOrder:      {arity: 1, op: anyone(ops.GetSpecificOrder)},
			protocol.ApplyPromotion:        {arity: 2, op: anyone(ops.ApplyPromotion)},
			protocol.RemovePromotion:       {arity: 1, op: anyone(ops.RemovePromotion)},
			protocol.GetEmployeeList:       {arity: 0, adminOnly: true, op: adminOnly(ops.GetEmployeeList)},
			protocol.AddEmployee:           {arity: 2, adminOnly: true, op: adminOnly(ops.AddEmployee)},
			protocol.RemoveEmployee:        {arity: 1, adminOnly: true, op: adminOnly(ops.RemoveEmployee)},
		},
		logger:  logger,
		metrics: m,
	}
}

func anyone(fn func(context.Context, *protocol.Message) *protocol.Message) operation {
	return func(ctx context.Context, _ *Session, msg *protocol.Message) *protocol.Message {
		return fn(ctx, msg)
	}
}

func adminOnly(fn func(context.Context, string, *protocol.Message) *protocol.Message) operation {
	return func(ctx context.Context, sess *Session, msg *protocol.Message) *protocol.Message {
		return fn(ctx, sess.Identity, msg)
	}
}

// Arity returns the option count required by action, if it is dispatchable.
func (d *Dispatcher) Arity(action protocol.ActionCode) (int, bool) {
	r, ok := d.routes[action]
	return r.arity, ok
}

// Dispatch always returns a reply, never nil.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *protocol.Message, sess *Session) *protocol.Message {
	action := msg.Action().String()

	r, ok := d.routes[msg.Action()]
	if !ok {
		d.logger.Warn("dispatch_unknown_action",
			"client_id", sess.ClientID,
			"action", action,
		)
		d.metrics.Frame(action, "error")
		return protocol.NewError(msgActionNotRecognized)
	}

	if err := msg.AssertOptionCount(r.arity); err != nil {
		d.logger.Warn("dispatch_arity_mismatch",
			"client_id", sess.ClientID,
			"action", action,
			"error", err.Error(),
		)
		d.metrics.Frame(action, "error")
		return protocol.NewError(err.Error())
	}

	if r.adminOnly && !sess.IsAdmin {
		d.logger.Warn("dispatch_admin_required",
			"client_id", sess.ClientID,
			"identity", sess.Identity,
			"action", action,
		)
		d.metrics.Frame(action, "error")
		return protocol.NewError(msgAdminRequired)
	}

	start := time.Now()
	reply := r.op(ctx, sess, msg)
	d.metrics.ObserveDispatch(action, time.Since(start))

	if reply == nil {
		d.logger.Error("dispatch_nil_reply",
			"client_id", sess.ClientID,
			"action", action,
		)
		reply = protocol.NewError(msgInternalError)
	}

	outcome := "success"
	if reply.IsError() {
		outcome = "error"
	}
	d.metrics.Frame(action, outcome)
	d.logger.Debug("dispatched",
		"client_id", sess.ClientID,
		"action", action,
		"outcome", outcome,
	)
	return reply
}

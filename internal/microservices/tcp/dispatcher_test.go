package tcp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"stockhub/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	employee = &Session{Identity: "alice", ClientID: "c-alice"}
	admin    = &Session{Identity: "root", IsAdmin: true, ClientID: "c-root"}
)

func TestDispatch_ForwardsToBackend(t *testing.T) {
	backend := new(MockBackend)
	d := NewDispatcher(backend, discardLogger(), nil)

	msg := protocol.NewMessage(protocol.GetSpecificProduct, "42")
	want := protocol.NewSuccess("42")
	want.AppendProduct("tea", "2.50", "10")
	backend.On("GetSpecificProduct", mock.Anything, msg).Return(want).Once()

	got := d.Dispatch(context.Background(), msg, employee)

	assert.Same(t, want, got)
	backend.AssertExpectations(t)
}

func TestDispatch_ArityMismatchNeverReachesBackend(t *testing.T) {
	backend := new(MockBackend)
	d := NewDispatcher(backend, discardLogger(), nil)

	got := d.Dispatch(context.Background(), protocol.NewMessage(protocol.GetProductList, "unexpected"), employee)

	assert.Equal(t, protocol.Error, got.Action())
	assert.Contains(t, got.Reason(), "expected 0 but have 1")
	backend.AssertNotCalled(t, "GetProductList", mock.Anything, mock.Anything)
}

func TestDispatch_UnknownActions(t *testing.T) {
	backend := new(MockBackend)
	d := NewDispatcher(backend, discardLogger(), nil)

	for _, action := range []protocol.ActionCode{
		protocol.LoginAsUser,
		protocol.LoginAsAdmin,
		protocol.Disconnect,
		protocol.Error,
		protocol.TimeoutError,
		protocol.Success,
	} {
		got := d.Dispatch(context.Background(), protocol.NewMessage(action), admin)
		assert.Equal(t, protocol.Error, got.Action(), action.String())
		assert.Equal(t, msgActionNotRecognized, got.Reason(), action.String())
	}
	assert.Empty(t, backend.Calls)
}

func TestDispatch_AdminGate(t *testing.T) {
	backend := new(MockBackend)
	d := NewDispatcher(backend, discardLogger(), nil)
	msg := protocol.NewMessage(protocol.AddEmployee, "bob", "pw")

	got := d.Dispatch(context.Background(), msg, employee)
	assert.Equal(t, protocol.Error, got.Action())
	assert.Equal(t, msgAdminRequired, got.Reason())
	backend.AssertNotCalled(t, "AddEmployee", mock.Anything, mock.Anything, mock.Anything)

	backend.On("AddEmployee", mock.Anything, "root", msg).Return(protocol.NewSuccess("7")).Once()
	got = d.Dispatch(context.Background(), msg, admin)
	assert.Equal(t, "<9993><7>", got.String())
	backend.AssertExpectations(t)
}

func TestDispatch_NilReplyBecomesError(t *testing.T) {
	backend := new(MockBackend)
	d := NewDispatcher(backend, discardLogger(), nil)
	backend.On("GetOrderList", mock.Anything, mock.Anything).Return(nil)

	got := d.Dispatch(context.Background(), protocol.NewMessage(protocol.GetOrderList), employee)

	assert.NotNil(t, got)
	assert.Equal(t, msgInternalError, got.Reason())
}

func TestDispatch_TableCoversBusinessActions(t *testing.T) {
	d := NewDispatcher(new(MockBackend), discardLogger(), nil)

	want := map[protocol.ActionCode]int{
		protocol.AddProduct:            3,
		protocol.AddProductQuantity:    2,
		protocol.RemoveProductQuantity: 2,
		protocol.RemoveProduct:         1,
		protocol.ValidateOrder:         1,
		protocol.DeleteOrder:           1,
		protocol.GetProductList:        0,
		protocol.GetOrderList:          0,
		protocol.GetSpecificProduct:    1,
		protocol.GetSpecificOrder:      1,
		protocol.GetEmployeeList:       0,
		protocol.AddEmployee:           2,
		protocol.RemoveEmployee:        1,
		protocol.ApplyPromotion:        2,
		protocol.RemovePromotion:       1,
	}
	for action, arity := range want {
		got, ok := d.Arity(action)
		assert.True(t, ok, action.String())
		assert.Equal(t, arity, got, action.String())
	}
	assert.Len(t, d.routes, len(want))
}

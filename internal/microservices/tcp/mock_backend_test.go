package tcp

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockhub/internal/protocol"
)

// MockBackend mocks the Backend interface
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) reply(args mock.Arguments) *protocol.Message {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*protocol.Message)
}

func (m *MockBackend) CheckCredentials(ctx context.Context, identity, secret string, wantsAdmin bool) *protocol.Message {
	return m.reply(m.Called(ctx, identity, secret, wantsAdmin))
}

func (m *MockBackend) RecordLastLogin(ctx context.Context, identity string, isAdmin bool) error {
	args := m.Called(ctx, identity, isAdmin)
	return args.Error(0)
}

func (m *MockBackend) AddProduct(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) AddProductQuantity(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) RemoveProductQuantity(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) RemoveProduct(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) ValidateOrder(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) DeleteOrder(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) GetProductList(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) GetOrderList(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) GetSpecificProduct(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) GetSpecificOrder(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) ApplyPromotion(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) RemovePromotion(ctx context.Context, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, msg))
}

func (m *MockBackend) GetEmployeeList(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, actor, msg))
}

func (m *MockBackend) AddEmployee(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, actor, msg))
}

func (m *MockBackend) RemoveEmployee(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message {
	return m.reply(m.Called(ctx, actor, msg))
}

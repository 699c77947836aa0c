package protocol

import (
	"fmt"
)

// ActionCode names the operation a frame requests or the outcome it reports.
type ActionCode int

const (
	LoginAsUser ActionCode = iota + 1
	LoginAsAdmin
	Disconnect
	AddProduct
	AddProductQuantity
	RemoveProductQuantity
	RemoveProduct
	ValidateOrder
	DeleteOrder
	GetProductList
	GetOrderList
	GetSpecificProduct
	GetSpecificOrder
	GetEmployeeList
	AddEmployee
	RemoveEmployee
	ApplyPromotion
	RemovePromotion

	// sent by the server only
	Error
	TimeoutError
	Success
)

// CodeLength is the fixed width of every action code on the wire.
const CodeLength = 4

type actionInfo struct {
	code string
	name string
}

var actions = map[ActionCode]actionInfo{
	LoginAsUser:           {"0001", "LOGIN_AS_USER"},
	LoginAsAdmin:          {"0002", "LOGIN_AS_ADMIN"},
	Disconnect:            {"1000", "DISCONNECT"},
	AddProduct:            {"0101", "ADD_PRODUCT"},
	AddProductQuantity:    {"0102", "ADD_PRODUCT_QUANTITY"},
	RemoveProductQuantity: {"0103", "REMOVE_PRODUCT_QUANTITY"},
	RemoveProduct:         {"0104", "REMOVE_PRODUCT"},
	ValidateOrder:         {"0201", "VALIDATE_ORDER"},
	DeleteOrder:           {"0202", "DELETE_ORDER"},
	GetProductList:        {"0301", "GET_PRODUCT_LIST"},
	GetOrderList:          {"0302", "GET_ORDER_LIST"},
	GetSpecificProduct:    {"0303", "GET_SPECIFIC_PRODUCT"},
	GetSpecificOrder:      {"0304", "GET_SPECIFIC_ORDER"},
	GetEmployeeList:       {"0305", "GET_EMPLOYEE_LIST"},
	AddEmployee:           {"0401", "ADD_EMPLOYEE"},
	RemoveEmployee:        {"0402", "REMOVE_EMPLOYEE"},
	ApplyPromotion:        {"0501", "APPLY_PROMOTION"},
	RemovePromotion:       {"0502", "REMOVE_PROMOTION"},
	Error:                 {"9991", "ERROR"},
	TimeoutError:          {"9992", "TIMEOUT_ERROR"},
	Success:               {"9993", "SUCCESS"},
}

// reverse index, built once from actions
var byCode = make(map[string]ActionCode, len(actions))

func init() {
	for action, info := range actions {
		if len(info.code) != CodeLength {
			panic(fmt.Sprintf("protocol: code %q of %s is not %d characters", info.code, info.name, CodeLength))
		}
		if other, dup := byCode[info.code]; dup {
			panic(fmt.Sprintf("protocol: code %q bound to both %s and %s", info.code, other, info.name))
		}
		byCode[info.code] = action
	}
}

// LookupAction resolves a wire code to its action. Codes that are not exactly
// four characters or are not registered fail with ErrCodeNotFound.
func LookupAction(code string) (ActionCode, error) {
	if len(code) != CodeLength {
		return 0, fmt.Errorf("%w: %q is not %d characters long", ErrCodeNotFound, code, CodeLength)
	}
	action, ok := byCode[code]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a valid code", ErrCodeNotFound, code)
	}
	return action, nil
}

// Code returns the 4-character wire code, or "" for an unregistered value.
func (a ActionCode) Code() string {
	return actions[a].code
}

func (a ActionCode) String() string {
	if info, ok := actions[a]; ok {
		return info.name
	}
	return fmt.Sprintf("ActionCode(%d)", int(a))
}

// Valid reports whether a is a registered action.
func (a ActionCode) Valid() bool {
	_, ok := actions[a]
	return ok
}

// ServerOnly reports whether the action is only ever sent by the server.
func (a ActionCode) ServerOnly() bool {
	return a == Error || a == TimeoutError || a == Success
}

// Actions returns every registered action in declaration order.
func Actions() []ActionCode {
	out := make([]ActionCode, 0, len(actions))
	for a := LoginAsUser; a <= Success; a++ {
		out = append(out, a)
	}
	return out
}

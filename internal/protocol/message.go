package protocol

import (
	"fmt"
	"slices"
	"strings"
)

const (
	fieldOpen  = '<'
	fieldClose = '>'
	// ItemSeparator joins the sub-fields of a composite option (products, list items).
	ItemSeparator = ";"
)

// Message is one framed unit: an action code followed by positional options.
type Message struct {
	action  ActionCode
	options []string
}

// NewMessage builds a message from an action and its options, in order.
func NewMessage(action ActionCode, options ...string) *Message {
	return &Message{action: action, options: slices.Clone(options)}
}

// NewError builds an ERROR reply carrying a human-readable reason.
func NewError(reason string) *Message {
	return &Message{action: Error, options: []string{reason}}
}

// NewErrorf is NewError with fmt formatting.
func NewErrorf(format string, args ...any) *Message {
	return NewError(fmt.Sprintf(format, args...))
}

// NewTimeoutError builds a TIMEOUT_ERROR notice.
func NewTimeoutError(reason string) *Message {
	return &Message{action: TimeoutError, options: []string{reason}}
}

// NewSuccess builds a SUCCESS reply with optional results.
func NewSuccess(options ...string) *Message {
	return NewMessage(Success, options...)
}

func (m *Message) Action() ActionCode {
	return m.action
}

// SetAction replaces the action code, used to turn a built reply into an
// error or success shortcut.
func (m *Message) SetAction(action ActionCode) {
	m.action = action
}

// Option returns the i-th option. It panics when i is out of range, like a slice.
func (m *Message) Option(i int) string {
	return m.options[i]
}

func (m *Message) OptionCount() int {
	return len(m.options)
}

// Options returns a copy of the options.
func (m *Message) Options() []string {
	return slices.Clone(m.options)
}

// IsError reports whether the message is an ERROR or TIMEOUT_ERROR.
func (m *Message) IsError() bool {
	return m.action == Error || m.action == TimeoutError
}

// Reason returns the first option of an error message, or "".
func (m *Message) Reason() string {
	if m.IsError() && len(m.options) > 0 {
		return m.options[0]
	}
	return ""
}

func (m *Message) AppendOption(option string) {
	m.options = append(m.options, option)
}

// AppendFields appends one composite option made of fields joined by ';'.
// Fields must not contain any reserved character.
func (m *Message) AppendFields(fields ...string) error {
	for _, f := range fields {
		if strings.ContainsAny(f, "<>;") {
			return fmt.Errorf("%w: %q", ErrReservedCharacter, f)
		}
	}
	m.options = append(m.options, strings.Join(fields, ItemSeparator))
	return nil
}

// AppendProduct appends the name;price;quantity composite option.
func (m *Message) AppendProduct(name, price, quantity string) error {
	return m.AppendFields(name, price, quantity)
}

// Equal reports whether both messages carry the same action and options.
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.action == other.action && slices.Equal(m.options, other.options)
}

// String renders the wire form without validating the content. Use Encode
// before writing to a connection.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteByte(fieldOpen)
	b.WriteString(m.action.Code())
	b.WriteByte(fieldClose)
	for _, opt := range m.options {
		b.WriteByte(fieldOpen)
		b.WriteString(opt)
		b.WriteByte(fieldClose)
	}
	return b.String()
}

// SplitFields splits a composite option back into its sub-fields.
func SplitFields(option string) []string {
	return strings.Split(option, ItemSeparator)
}

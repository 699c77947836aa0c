package command

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockhub/internal/protocol"
)

func TestResolveAction(t *testing.T) {
	tests := map[string]protocol.ActionCode{
		"0301":             protocol.GetProductList,
		"GET_PRODUCT_LIST": protocol.GetProductList,
		"add_employee":     protocol.AddEmployee,
		"1000":             protocol.Disconnect,
	}
	for arg, want := range tests {
		got, err := resolveAction(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, want, got, arg)
	}

	_, err := resolveAction("SELL_EVERYTHING")
	assert.ErrorContains(t, err, "unknown action")
}

func TestPrintReply(t *testing.T) {
	color.NoColor = true
	reply := protocol.NewSuccess("2")
	require.NoError(t, reply.AppendFields("1", "tea", "2.50", "10", ""))

	var buf bytes.Buffer
	printReply(&buf, reply, false)
	assert.Equal(t, "SUCCESS\n  [0] 2\n  [1] 1 | tea | 2.50 | 10 | \n", buf.String())

	buf.Reset()
	printReply(&buf, reply, true)
	assert.Equal(t, "<9993><2><1;tea;2.50;10;>\n", buf.String())

	buf.Reset()
	printReply(&buf, protocol.NewError("product not found"), false)
	assert.Equal(t, "ERROR\n  [0] product not found\n", buf.String())
}

func TestActionsCommand(t *testing.T) {
	var buf bytes.Buffer
	actionsCmd.SetOut(&buf)
	require.NoError(t, actionsCmd.RunE(actionsCmd, nil))

	out := buf.String()
	assert.Contains(t, out, "0001  LOGIN_AS_USER")
	assert.Contains(t, out, "0502  REMOVE_PROMOTION")
	assert.False(t, strings.Contains(out, "SUCCESS"))
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	tokenSubject = "ops"
	assert.Error(t, tokenCmd.RunE(tokenCmd, nil))

	t.Setenv("JWT_SECRET", strings.Repeat("k", 32))
	var buf bytes.Buffer
	tokenCmd.SetOut(&buf)
	require.NoError(t, tokenCmd.RunE(tokenCmd, nil))
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(buf.String()), "."))
}

package command

import (
	"testing"

	"github.com/emberkv/emberkv/pkg/resp"
	"github.com/emberkv/emberkv/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndDispatch(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register("ping", handlePing)
	require.NoError(t, err)

	ks := store.New(store.RealClock)
	res := reg.Dispatch(ks, "PING", nil)
	assert.Equal(t, resp.StringOf("PONG"), res.Reply)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("ping", handlePing))
	err := reg.Register("PING", handlePing)
	assert.Error(t, err)
}

func TestDispatchUnknownCommand(t *testing.T) {
	reg := NewRegistry()
	ks := store.New(store.RealClock)
	res := reg.Dispatch(ks, "bogus", nil)
	assert.Equal(t, resp.KindError, res.Reply.Kind)
}

func TestCommandDocsListsRegisteredCommands(t *testing.T) {
	reg := NewRegistry()
	ks := store.New(store.RealClock)
	require.NoError(t, RegisterAll(reg, ks))

	res := reg.Dispatch(ks, "command", []resp.Value{resp.StringOf("docs")})
	require.Equal(t, resp.KindMap, res.Reply.Kind)
	assert.Len(t, res.Reply.Entries, len(reg.Names()))
	for _, e := range res.Reply.Entries {
		name := string(e.Key.Str)
		assert.Equal(t, resp.Array(resp.StringOf(name)), e.Val)
	}

	res = reg.Dispatch(ks, "command", []resp.Value{resp.StringOf("bogus")})
	assert.Equal(t, resp.KindError, res.Reply.Kind)
}

func TestRegisterAllWiresEveryHandler(t *testing.T) {
	reg := NewRegistry()
	ks := store.New(store.RealClock)
	require.NoError(t, RegisterAll(reg, ks))

	for _, name := range []string{"ping", "echo", "set", "get", "incr", "decr",
		"incrby", "decrby", "del", "exists", "ttl", "quit", "hello", "client",
		"config", "command"} {
		assert.Contains(t, reg.Names(), name)
	}
}

// Package command implements the command table: the registry that maps a
// command name to its handler, and dispatch of parsed RESP requests against
// a keyspace.
package command

import (
	"strings"

	"github.com/emberkv/emberkv/pkg/resp"
	"github.com/emberkv/emberkv/pkg/store"
	"github.com/pkg/errors"
)

// Result is what a Handler produces: the reply to write back on the wire,
// and whether the connection should be closed after it is flushed (set by
// QUIT).
type Result struct {
	Reply resp.Value
	Close bool
}

func reply(v resp.Value) Result { return Result{Reply: v} }

// Handler executes one command's args (not including the command name
// itself) against ks and produces a Result.
type Handler func(ks *store.Keyspace, args []resp.Value) Result

// Registry is a case-insensitive lookup from command name to Handler. It
// holds no other state; callers construct one, register everything they
// support, and share it across connections.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds name (case-insensitively) to the registry. It errors if
// name is already registered, rather than silently shadowing it — command
// registration happens once at startup, so a collision is a programmer
// error worth surfacing immediately.
func (r *Registry) Register(name string, h Handler) error {
	key := strings.ToLower(name)
	if _, exists := r.handlers[key]; exists {
		return errors.Errorf("command: %q already registered", name)
	}
	r.handlers[key] = h
	return nil
}

// Names returns every registered command name, lowercased.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Dispatch looks up name and runs it against args and ks. An unknown
// command yields a RESP error reply rather than failing the call, matching
// how every other wire-level command failure is reported.
func (r *Registry) Dispatch(ks *store.Keyspace, name string, args []resp.Value) Result {
	h, ok := r.handlers[strings.ToLower(name)]
	if !ok {
		return reply(resp.Errorf("ERR unknown command '%s'", name))
	}
	return h(ks, args)
}

// RegisterAll wires every handler this repository ships into reg. Called
// explicitly from cmd/emberkv-server/main.go rather than via package-init
// side effects — see DESIGN.md for why self-registration was rejected.
func RegisterAll(reg *Registry, ks *store.Keyspace) error {
	handlers := map[string]Handler{
		"ping":    handlePing,
		"echo":    handleEcho,
		"hello":   handleHello,
		"client":  handleClient,
		"config":  handleConfig,
		"command": handleCommand(reg),
		"set":     handleSet,
		"get":     handleGet,
		"incr":    handleIncr,
		"incrby":  handleIncrBy,
		"decr":    handleDecr,
		"decrby":  handleDecrBy,
		"del":     handleDel,
		"exists":  handleExists,
		"ttl":     handleTTL,
		"quit":    handleQuit,
	}
	for name, h := range handlers {
		if err := reg.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

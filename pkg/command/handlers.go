package command

import (
	"strings"
	"time"

	"github.com/emberkv/emberkv/pkg/resp"
	"github.com/emberkv/emberkv/pkg/store"
)

func handlePing(_ *store.Keyspace, args []resp.Value) Result {
	switch len(args) {
	case 0:
		return reply(resp.StringOf("PONG"))
	case 1:
		return reply(args[0])
	default:
		return reply(resp.Error("ERR wrong number of arguments for 'ping' command"))
	}
}

func handleEcho(_ *store.Keyspace, args []resp.Value) Result {
	if len(args) != 1 {
		return reply(resp.Error("ERR wrong number of arguments for 'echo' command"))
	}
	return reply(args[0])
}

// handleHello requires exactly one arg that coerces to protocol version 3;
// anything else is an error. This server always speaks RESP3 on the wire
// once a reply is written, so a successful HELLO changes nothing else.
func handleHello(_ *store.Keyspace, args []resp.Value) Result {
	if len(args) != 1 {
		return reply(resp.Error("ERR wrong number of arguments for 'hello' command"))
	}
	ver, ok := args[0].ToIntSafe()
	if !ok || ver != 3 {
		return reply(resp.Error("ERR invalid protocol version"))
	}
	return reply(resp.Map(
		resp.MapEntry{Key: resp.StringOf("server"), Val: resp.StringOf("emberkv")},
		resp.MapEntry{Key: resp.StringOf("version"), Val: resp.StringOf("1.0.0")},
		resp.MapEntry{Key: resp.StringOf("proto"), Val: resp.Integer(3)},
		resp.MapEntry{Key: resp.StringOf("id"), Val: resp.Integer(1)},
		resp.MapEntry{Key: resp.StringOf("mode"), Val: resp.StringOf("standalone")},
		resp.MapEntry{Key: resp.StringOf("role"), Val: resp.StringOf("master")},
		resp.MapEntry{Key: resp.StringOf("modules"), Val: resp.Array()},
	))
}

// handleClient is a stub: it replies OK to every CLIENT sub-command except
// GETNAME, which gets an empty string.
func handleClient(_ *store.Keyspace, args []resp.Value) Result {
	if len(args) > 0 && strings.ToUpper(string(args[0].Str)) == "GETNAME" {
		return reply(resp.StringOf(""))
	}
	return reply(resp.StringOf("OK"))
}

// configValues holds the known CONFIG GET keys this server answers for.
var configValues = map[string]string{
	"save":       "",
	"appendonly": "no",
}

// handleConfig implements CONFIG GET key: two args, the first must be GET
// (case-insensitive). A known key returns its string value; an unknown key
// returns an empty string rather than an error.
func handleConfig(_ *store.Keyspace, args []resp.Value) Result {
	if len(args) != 2 || strings.ToUpper(string(args[0].Str)) != "GET" {
		return reply(resp.Error("ERR unsupported CONFIG subcommand"))
	}
	return reply(resp.StringOf(configValues[strings.ToLower(string(args[1].Str))]))
}

// handleCommand implements COMMAND DOCS: exactly one arg, case-insensitively
// DOCS, replying with a Map from each registered command name to an Array
// containing just that name (stub documentation). Any other sub-command is
// an error.
func handleCommand(reg *Registry) Handler {
	return func(_ *store.Keyspace, args []resp.Value) Result {
		if len(args) != 1 || strings.ToUpper(string(args[0].Str)) != "DOCS" {
			return reply(resp.Error("ERR unknown subcommand for 'command'"))
		}
		names := reg.Names()
		entries := make([]resp.MapEntry, len(names))
		for i, name := range names {
			entries[i] = resp.MapEntry{Key: resp.StringOf(name), Val: resp.Array(resp.StringOf(name))}
		}
		return reply(resp.Map(entries...))
	}
}

// handleSet implements SET key value [EX seconds | PX milliseconds]. It
// does not clear an existing expiration when no EX/PX option is given; see
// DESIGN.md for this Open Question's resolution.
func handleSet(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) < 2 {
		return reply(resp.Error("ERR wrong number of arguments for 'set' command"))
	}
	key := string(args[0].Str)
	value := resp.String(append([]byte(nil), args[1].Str...))

	var expireIn *time.Duration
	if len(args) >= 4 {
		opt := strings.ToUpper(string(args[2].Str))
		n, ok := args[3].ToIntSafe()
		if !ok || n < 0 {
			return reply(resp.Error("ERR value is not an integer or out of range"))
		}
		switch opt {
		case "EX":
			d := time.Duration(n) * time.Second
			expireIn = &d
		case "PX":
			d := time.Duration(n) * time.Millisecond
			expireIn = &d
		default:
			return reply(resp.Error("ERR syntax error"))
		}
	} else if len(args) != 2 {
		return reply(resp.Error("ERR syntax error"))
	}

	ks.Set(key, value, expireIn)
	return reply(resp.StringOf("OK"))
}

func handleGet(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) != 1 {
		return reply(resp.Error("ERR wrong number of arguments for 'get' command"))
	}
	v, ok := ks.Get(string(args[0].Str))
	if !ok {
		return reply(resp.Null())
	}
	return reply(v)
}

func handleIncr(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) != 1 {
		return reply(resp.Error("ERR wrong number of arguments for 'incr' command"))
	}
	return incrBy(ks, string(args[0].Str), 1)
}

func handleDecr(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) != 1 {
		return reply(resp.Error("ERR wrong number of arguments for 'decr' command"))
	}
	return incrBy(ks, string(args[0].Str), -1)
}

func handleIncrBy(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) != 2 {
		return reply(resp.Error("ERR wrong number of arguments for 'incrby' command"))
	}
	delta, ok := args[1].ToIntSafe()
	if !ok {
		return reply(resp.Error("ERR value is not an integer or out of range"))
	}
	return incrBy(ks, string(args[0].Str), delta)
}

func handleDecrBy(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) != 2 {
		return reply(resp.Error("ERR wrong number of arguments for 'decrby' command"))
	}
	delta, ok := args[1].ToIntSafe()
	if !ok {
		return reply(resp.Error("ERR value is not an integer or out of range"))
	}
	return incrBy(ks, string(args[0].Str), -delta)
}

func incrBy(ks *store.Keyspace, key string, delta int64) Result {
	current := int64(0)
	if v, ok := ks.Get(key); ok {
		n, ok := v.ToIntSafe()
		if !ok {
			return reply(resp.Error("ERR value is not an integer or out of range"))
		}
		current = n
	}
	next := current + delta
	ks.Set(key, resp.StringOf(formatInt(next)), nil)
	return reply(resp.Integer(next))
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// handleDel implements the supplemented DEL command: removes one or more
// keys and replies with how many existed.
func handleDel(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) == 0 {
		return reply(resp.Error("ERR wrong number of arguments for 'del' command"))
	}
	return reply(resp.Integer(ks.Del(keyStrings(args)...)))
}

// handleExists implements the supplemented EXISTS command.
func handleExists(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) == 0 {
		return reply(resp.Error("ERR wrong number of arguments for 'exists' command"))
	}
	return reply(resp.Integer(ks.Exists(keyStrings(args)...)))
}

// handleTTL implements the supplemented TTL command.
func handleTTL(ks *store.Keyspace, args []resp.Value) Result {
	if len(args) != 1 {
		return reply(resp.Error("ERR wrong number of arguments for 'ttl' command"))
	}
	return reply(resp.Integer(ks.TTL(string(args[0].Str))))
}

// handleQuit replies OK and requests that the connection layer close the
// socket once the reply has been flushed.
func handleQuit(_ *store.Keyspace, _ []resp.Value) Result {
	return Result{Reply: resp.StringOf("OK"), Close: true}
}

func keyStrings(args []resp.Value) []string {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a.Str)
	}
	return keys
}

package resp

import (
	"github.com/emberkv/emberkv/pkg/parsec"
)

// sep matches the wire's mandatory CRLF terminator.
var sep = parsec.Terminal("\r\n")

// signedLen parses a decimal length header that may be negative (used by
// RESP2 null bulk strings/arrays, encoded as length -1).
func signedLen() parsec.Parser[int64] {
	return parsec.Int()
}

// bulkString parses `$<len>\r\n<payload>\r\n`. A negative length is the
// RESP2 null-bulk-string encoding and decodes to KindNull.
func bulkString() parsec.Parser[Value] {
	header := parsec.First(parsec.Second(parsec.Char('$'), signedLen()), sep)
	return parsec.Bind(header, func(n int64) parsec.Parser[Value] {
		if n < 0 {
			return parsec.Pure(Null())
		}
		return func(input []byte) (parsec.Result[Value], bool) {
			if int64(len(input)) < n {
				return parsec.Result[Value]{}, false
			}
			payload := input[:n]
			rest := input[n:]
			rs, ok := sep(rest)
			if !ok {
				return parsec.Result[Value]{}, false
			}
			buf := make([]byte, len(payload))
			copy(buf, payload)
			return parsec.Result[Value]{Value: String(buf), Rest: rs.Rest}, true
		}
	})
}

// simpleString parses `+<line>\r\n`.
func simpleString() parsec.Parser[Value] {
	line := parsec.RepeatTerminated(parsec.AnyChar(), sep)
	return parsec.FMap(func(t parsec.Terminated[byte, string]) Value {
		return String(t.Items)
	}, parsec.Second(parsec.Char('+'), line))
}

// integer parses `:<signed decimal>\r\n`.
func integer() parsec.Parser[Value] {
	body := parsec.First(parsec.Second(parsec.Char(':'), parsec.Int()), sep)
	return parsec.FMap(func(n int64) Value { return Integer(n) }, body)
}

// respError parses `-<line>\r\n`.
func respError() parsec.Parser[Value] {
	line := parsec.RepeatTerminated(parsec.AnyChar(), sep)
	return parsec.FMap(func(t parsec.Terminated[byte, string]) Value {
		return Error(string(t.Items))
	}, parsec.Second(parsec.Char('-'), line))
}

// null parses RESP3's dedicated null type, `_\r\n`.
func null() parsec.Parser[Value] {
	return parsec.FMap(func(string) Value { return Null() }, parsec.Second(parsec.Char('_'), sep))
}

// array parses `*<count>\r\n` followed by that many expressions. A negative
// count is the RESP2 null-array encoding and decodes to KindNull.
func array(expr parsec.Parser[Value]) parsec.Parser[Value] {
	header := parsec.First(parsec.Second(parsec.Char('*'), signedLen()), sep)
	return parsec.Bind(header, func(n int64) parsec.Parser[Value] {
		if n < 0 {
			return parsec.Pure(Null())
		}
		return parsec.FMap(func(items []Value) Value {
			if len(items) == 0 {
				return Array()
			}
			return Array(items...)
		}, parsec.RepeatN(parsec.Pure(uint64(n)), expr))
	})
}

// respMap parses RESP3's `%<count>\r\n` followed by that many key/value
// expression pairs.
func respMap(expr parsec.Parser[Value]) parsec.Parser[Value] {
	header := parsec.First(parsec.Second(parsec.Char('%'), parsec.UInt()), sep)
	pair := parsec.FMap(func(p parsec.Pair[Value, Value]) MapEntry {
		return MapEntry{Key: p.First, Val: p.Second}
	}, parsec.AndThen(expr, expr))
	return parsec.Bind(header, func(n uint64) parsec.Parser[Value] {
		return parsec.FMap(func(entries []MapEntry) Value {
			return Map(entries...)
		}, parsec.RepeatN(parsec.Pure(n), pair))
	})
}

// exprParser holds the fully-built top-level RESP expression grammar,
// assembled once in newExprParser via the Ref/pointer-indirection pattern:
// array and map both recurse into expr for their elements.
var exprParser = newExprParser()

func newExprParser() parsec.Parser[Value] {
	var expr parsec.Parser[Value]
	ref := parsec.Ref(&expr)
	expr = parsec.OrElse(bulkString(),
		parsec.OrElse(simpleString(),
			parsec.OrElse(integer(),
				parsec.OrElse(respError(),
					parsec.OrElse(null(),
						parsec.OrElse(array(ref), respMap(ref)))))))
	return expr
}

// Decode parses a single RESP expression from the front of buf. It reports
// the parsed Value, the number of bytes consumed, and whether a complete
// expression was present. A false result with n == 0 means buf holds an
// incomplete frame and the caller should wait for more data; it is not a
// protocol error by itself.
func Decode(buf []byte) (Value, int, bool) {
	r, ok := exprParser(buf)
	if !ok {
		return Value{}, 0, false
	}
	return r.Value, len(buf) - len(r.Rest), true
}

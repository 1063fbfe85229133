// Package resp implements the value model and wire codec for RESP2/RESP3,
// the Redis Serialization Protocol. Value is a single tagged union covering
// every RESP data kind; Decode and Value.Encode move between that
// in-memory form and the wire bytes described at
// https://redis.io/docs/reference/protocol-spec/.
package resp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cast"
)

// Kind identifies which RESP variant a Value holds.
type Kind int

const (
	// KindString is a binary-safe byte string. It covers both the wire's
	// "simple string" and "bulk string" forms; this model does not
	// distinguish them on decode, and always encodes as bulk string.
	KindString Kind = iota
	// KindInteger is a 64-bit signed integer.
	KindInteger
	// KindError is a protocol-level error reply.
	KindError
	// KindArray is an ordered, possibly nested sequence of Values.
	KindArray
	// KindMap is an unordered RESP3 mapping from Value to Value.
	KindMap
	// KindNull is the RESP3 null value.
	KindNull
)

// MapEntry is one key/value pair of a KindMap Value. Both Key and Val may be
// any Value, per RESP3 — not just strings.
type MapEntry struct {
	Key Val
	Val Val
}

// Val is an alias kept short for use inside MapEntry and Array literals in
// calling code; it is the same type as Value.
type Val = Value

// Value is the single polymorphic type unifying every RESP data kind.
type Value struct {
	Kind    Kind
	Str     []byte     // KindString payload, KindError message
	Int     int64      // KindInteger payload
	Items   []Value    // KindArray elements
	Entries []MapEntry // KindMap pairs
}

// String builds a KindString Value from a byte slice. The caller gives up
// ownership of b.
func String(b []byte) Value { return Value{Kind: KindString, Str: b} }

// StringOf is a convenience wrapper for Go string literals.
func StringOf(s string) Value { return Value{Kind: KindString, Str: []byte(s)} }

// Integer builds a KindInteger Value.
func Integer(n int64) Value { return Value{Kind: KindInteger, Int: n} }

// Error builds a KindError Value. msg is the error text without the leading
// '-' wire marker.
func Error(msg string) Value { return Value{Kind: KindError, Str: []byte(msg)} }

// Errorf is Error with fmt.Sprintf formatting.
func Errorf(format string, args ...interface{}) Value {
	return Error(fmt.Sprintf(format, args...))
}

// Array builds a KindArray Value.
func Array(items ...Value) Value { return Value{Kind: KindArray, Items: items} }

// Map builds a KindMap Value.
func Map(entries ...MapEntry) Value { return Value{Kind: KindMap, Entries: entries} }

// Null is the RESP3 null Value.
func Null() Value { return Value{Kind: KindNull} }

// Encode appends the wire representation of v to dst and returns the
// extended slice, per the table in spec.md §4.1.
func (v Value) Encode(dst []byte) []byte {
	switch v.Kind {
	case KindString:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.Str)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')
	case KindInteger:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.Int, 10)
		return append(dst, '\r', '\n')
	case KindError:
		dst = append(dst, '-')
		dst = append(dst, stripCRLF(v.Str)...)
		return append(dst, '\r', '\n')
	case KindArray:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v.Items)), 10)
		dst = append(dst, '\r', '\n')
		for _, item := range v.Items {
			dst = item.Encode(dst)
		}
		return dst
	case KindMap:
		dst = append(dst, '%')
		dst = strconv.AppendInt(dst, int64(len(v.Entries)), 10)
		dst = append(dst, '\r', '\n')
		for _, e := range v.Entries {
			dst = e.Key.Encode(dst)
			dst = e.Val.Encode(dst)
		}
		return dst
	case KindNull:
		return append(dst, '_', '\r', '\n')
	default:
		panic("resp: Encode: unknown Value kind")
	}
}

func stripCRLF(b []byte) []byte {
	clean := b
	for i, c := range b {
		if c == '\r' || c == '\n' {
			if clean == nil || &clean[0] == &b[0] {
				clean = append([]byte(nil), b...)
			}
			clean[i] = ' '
		}
	}
	return clean
}

// String renders the display form of v, used for logs — it is not meant to
// round-trip through the decoder.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return string(v.Str)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindError:
		return "(error) " + string(v.Str)
	case KindArray:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindMap:
		parts := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			parts[i] = e.Key.String() + ": " + e.Val.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindNull:
		return "(nil)"
	default:
		return ""
	}
}

// ToArraySafe coerces v into a slice of Values without ever failing: an
// Array yields its own elements, a Map yields one two-element [key, value]
// array per entry, Null yields the empty slice, and anything else yields a
// single-element slice wrapping v.
func (v Value) ToArraySafe() []Value {
	switch v.Kind {
	case KindArray:
		return v.Items
	case KindMap:
		out := make([]Value, len(v.Entries))
		for i, e := range v.Entries {
			out[i] = Array(e.Key, e.Val)
		}
		return out
	case KindNull:
		return nil
	default:
		return []Value{v}
	}
}

// ToIntSafe coerces v to an int64: KindInteger returns its payload directly;
// KindString is parsed as an ASCII decimal integer; anything else fails.
func (v Value) ToIntSafe() (int64, bool) {
	switch v.Kind {
	case KindInteger:
		return v.Int, true
	case KindString:
		n, err := cast.ToInt64E(string(v.Str))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Equal reports whether v and other are structurally equal.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindString, KindError:
		return string(v.Str) == string(other.Str)
	case KindInteger:
		return v.Int == other.Int
	case KindArray:
		if len(v.Items) != len(other.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Entries) != len(other.Entries) {
			return false
		}
		used := make([]bool, len(other.Entries))
		for _, e := range v.Entries {
			found := false
			for j, oe := range other.Entries {
				if used[j] {
					continue
				}
				if e.Key.Equal(oe.Key) && e.Val.Equal(oe.Val) {
					used[j] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case KindNull:
		return true
	default:
		return false
	}
}

// Hash returns a hash consistent with Equal: structurally equal Values
// always hash the same. It is computed over the wire encoding, following
// the source's own recommendation for types whose variants can't be hashed
// directly (RESP3 map keys may be any Value, including arrays and maps).
//
// KindMap is the exception: Equal treats a map's entries as an unordered
// set, so Hash must not depend on their encoding order. It XORs each
// entry's own hash instead, since XOR is order-independent.
func (v Value) Hash() uint64 {
	if v.Kind == KindMap {
		var h uint64
		for _, e := range v.Entries {
			buf := e.Key.Encode(nil)
			buf = e.Val.Encode(buf)
			h ^= xxhash.Sum64(buf)
		}
		return h
	}
	return xxhash.Sum64(v.Encode(nil))
}

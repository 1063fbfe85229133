// Package parsec implements a small parser-combinator library over byte
// slices. A Parser[T] is a pure function from an input slice to either a
// parsed value plus the unconsumed remainder, or failure. Combinators compose
// parsers without ever mutating shared state or committing input on a failed
// alternative, so callers are always free to backtrack and try something
// else.
package parsec

// Result is what a Parser returns on success: the parsed value and the
// slice of input that remains after consuming it.
type Result[T any] struct {
	Value T
	Rest  []byte
}

// Parser consumes a prefix of its input and produces a value, or fails.
// A failure is reported via the second (bool) return and must never consume
// input: the Result returned on failure is meaningless and callers must not
// look at it.
type Parser[T any] func(input []byte) (Result[T], bool)

// Pure builds a parser that consumes nothing and always succeeds with v.
func Pure[T any](v T) Parser[T] {
	return func(input []byte) (Result[T], bool) {
		return Result[T]{Value: v, Rest: input}, true
	}
}

// Bind sequences p with a continuation that picks the next parser based on
// p's result. This is the monadic `>>=` that every other combinator in this
// package is ultimately built from.
func Bind[A, B any](p Parser[A], f func(A) Parser[B]) Parser[B] {
	return func(input []byte) (Result[B], bool) {
		ra, ok := p(input)
		if !ok {
			return Result[B]{}, false
		}
		return f(ra.Value)(ra.Rest)
	}
}

// FMap transforms a parser's result without consuming any more input.
func FMap[A, B any](f func(A) B, p Parser[A]) Parser[B] {
	return Bind(p, func(a A) Parser[B] {
		return Pure(f(a))
	})
}

// Pair is the result of AndThen: both parsed values, in order.
type Pair[A, B any] struct {
	First  A
	Second B
}

// AndThen runs pa then pb and keeps both results.
func AndThen[A, B any](pa Parser[A], pb Parser[B]) Parser[Pair[A, B]] {
	return Bind(pa, func(a A) Parser[Pair[A, B]] {
		return Bind(pb, func(b B) Parser[Pair[A, B]] {
			return Pure(Pair[A, B]{First: a, Second: b})
		})
	})
}

// First runs pa then pb, keeping only pa's result.
func First[A, B any](pa Parser[A], pb Parser[B]) Parser[A] {
	return Bind(pa, func(a A) Parser[A] {
		return Bind(pb, func(B) Parser[A] {
			return Pure(a)
		})
	})
}

// Second runs pa then pb, keeping only pb's result.
func Second[A, B any](pa Parser[A], pb Parser[B]) Parser[B] {
	return Bind(pa, func(A) Parser[B] {
		return Bind(pb, func(b B) Parser[B] {
			return Pure(b)
		})
	})
}

// OrElse tries p1 against the original input; if it fails, tries p2 against
// that same input. p1 failing never consumes input, so this is always safe.
func OrElse[T any](p1, p2 Parser[T]) Parser[T] {
	return func(input []byte) (Result[T], bool) {
		if r, ok := p1(input); ok {
			return r, true
		}
		return p2(input)
	}
}

// Maybe never fails: it reports whether p matched and, if so, its value.
type Option[T any] struct {
	Value   T
	Present bool
}

func Maybe[T any](p Parser[T]) Parser[Option[T]] {
	return func(input []byte) (Result[Option[T]], bool) {
		r, ok := p(input)
		if !ok {
			return Result[Option[T]]{Value: Option[T]{}, Rest: input}, true
		}
		return Result[Option[T]]{Value: Option[T]{Value: r.Value, Present: true}, Rest: r.Rest}, true
	}
}

// Many applies p repeatedly until it fails, collecting every result. It
// always succeeds, possibly with zero results. A parser that succeeds
// without consuming any input would make Many loop forever; that is a
// programmer error in the parser being repeated, not a parse failure, so
// Many panics rather than spin.
func Many[T any](p Parser[T]) Parser[[]T] {
	return func(input []byte) (Result[[]T], bool) {
		var results []T
		rest := input
		for {
			r, ok := p(rest)
			if !ok {
				break
			}
			if len(r.Rest) == len(rest) {
				panic("parsec: Many: parser succeeded without consuming input")
			}
			results = append(results, r.Value)
			rest = r.Rest
		}
		return Result[[]T]{Value: results, Rest: rest}, true
	}
}

// OneOrMore is Many with at least one match required.
func OneOrMore[T any](p Parser[T]) Parser[[]T] {
	return Bind(p, func(first T) Parser[[]T] {
		return Bind(Many(p), func(rest []T) Parser[[]T] {
			combined := make([]T, 0, len(rest)+1)
			combined = append(combined, first)
			combined = append(combined, rest...)
			return Pure(combined)
		})
	})
}

// RepeatN first runs count to learn how many items to expect, then parses
// exactly that many with item, failing if any one of them fails.
func RepeatN[T any](count Parser[uint64], item Parser[T]) Parser[[]T] {
	return func(input []byte) (Result[[]T], bool) {
		rc, ok := count(input)
		if !ok {
			return Result[[]T]{}, false
		}
		n := rc.Value
		results := make([]T, 0, n)
		rest := rc.Rest
		for i := uint64(0); i < n; i++ {
			ri, ok := item(rest)
			if !ok {
				return Result[[]T]{}, false
			}
			results = append(results, ri.Value)
			rest = ri.Rest
		}
		return Result[[]T]{Value: results, Rest: rest}, true
	}
}

// Terminated is the result of RepeatTerminated: the items collected before
// term matched, plus term's own value.
type Terminated[T, P any] struct {
	Items []T
	Term  P
}

// RepeatTerminated parses zero or more item values until term matches,
// trying term first at each step. It fails if the input is exhausted before
// term is found.
func RepeatTerminated[T, P any](item Parser[T], term Parser[P]) Parser[Terminated[T, P]] {
	return func(input []byte) (Result[Terminated[T, P]], bool) {
		if len(input) == 0 {
			return Result[Terminated[T, P]]{}, false
		}
		var items []T
		rest := input
		for {
			if len(rest) == 0 {
				return Result[Terminated[T, P]]{}, false
			}
			if rt, ok := term(rest); ok {
				return Result[Terminated[T, P]]{
					Value: Terminated[T, P]{Items: items, Term: rt.Value},
					Rest:  rt.Rest,
				}, true
			}
			ri, ok := item(rest)
			if !ok {
				return Result[Terminated[T, P]]{}, false
			}
			items = append(items, ri.Value)
			rest = ri.Rest
		}
	}
}

// Ref builds a parser that forwards to whatever *p holds at call time. It
// is the standard way to tie a recursive knot in this package: declare a
// `var p Parser[T]`, build the recursive grammar using Ref(&p) wherever it
// needs to refer to itself, then assign the finished parser to p before
// using it. Because Ref only dereferences p when it actually runs — never
// at construction time — p doesn't need to hold anything until then.
func Ref[T any](p *Parser[T]) Parser[T] {
	return func(input []byte) (Result[T], bool) {
		return (*p)(input)
	}
}

// Char matches a single expected byte.
func Char(expected byte) Parser[byte] {
	return func(input []byte) (Result[byte], bool) {
		if len(input) == 0 || input[0] != expected {
			return Result[byte]{}, false
		}
		return Result[byte]{Value: expected, Rest: input[1:]}, true
	}
}

// AnyChar matches any single byte.
func AnyChar() Parser[byte] {
	return func(input []byte) (Result[byte], bool) {
		if len(input) == 0 {
			return Result[byte]{}, false
		}
		return Result[byte]{Value: input[0], Rest: input[1:]}, true
	}
}

// Terminal matches a literal byte sequence exactly.
func Terminal(literal string) Parser[string] {
	lit := []byte(literal)
	return func(input []byte) (Result[string], bool) {
		if len(input) < len(lit) {
			return Result[string]{}, false
		}
		for i, b := range lit {
			if input[i] != b {
				return Result[string]{}, false
			}
		}
		return Result[string]{Value: literal, Rest: input[len(lit):]}, true
	}
}

// Digit matches a single ASCII digit and yields its numeric value 0-9.
func Digit() Parser[int] {
	return func(input []byte) (Result[int], bool) {
		if len(input) == 0 || input[0] < '0' || input[0] > '9' {
			return Result[int]{}, false
		}
		return Result[int]{Value: int(input[0] - '0'), Rest: input[1:]}, true
	}
}

// UInt matches one or more digits and yields the unsigned decimal value.
func UInt() Parser[uint64] {
	return FMap(func(digits []int) uint64 {
		var acc uint64
		for _, d := range digits {
			acc = acc*10 + uint64(d)
		}
		return acc
	}, OneOrMore(Digit()))
}

// Int matches an optional leading '+' or '-' followed by UInt.
func Int() Parser[int64] {
	sign := OrElse(Char('+'), Char('-'))
	return FMap(func(p Pair[Option[byte], uint64]) int64 {
		n := int64(p.Second)
		if p.First.Present && p.First.Value == '-' {
			return -n
		}
		return n
	}, AndThen(Maybe(sign), UInt()))
}

// Package conn implements the per-connection read/dispatch/write state
// machine sitting between the raw socket bytes the event loop hands in and
// the RESP codec and command registry.
package conn

import "github.com/emberkv/emberkv/pkg/resp"

// State is a connection's position in the read/write/close cycle.
type State int

const (
	// Idle: no bytes pending in either direction.
	Idle State = iota
	// Read: the event loop has data ready and HandleRead is processing it.
	Read
	// Write: a reply is queued and waiting for the socket to accept it.
	Write
	// Close: the connection should be torn down once any queued write
	// finishes flushing.
	Close
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Read:
		return "read"
	case Write:
		return "write"
	case Close:
		return "close"
	default:
		return "unknown"
	}
}

// Dispatcher executes one decoded request frame and produces the reply to
// write back, plus whether the connection should close once it is sent.
type Dispatcher func(frame resp.Value) (reply resp.Value, closeConn bool)

// Buffer holds one connection's pending input and output bytes and tracks
// its State, following the Idle/Read/Write/Close cycle of the original
// event-driven design this server is built from.
type Buffer struct {
	State    State
	incoming []byte
	outgoing []byte
}

// New builds an idle Buffer.
func New() *Buffer {
	return &Buffer{State: Idle}
}

// HandleRead appends newly arrived bytes to the incoming buffer, decodes
// and dispatches every complete request frame now available, and queues
// each reply for writing. It stops decoding (without discarding whatever
// bytes remain) as soon as the buffer holds an incomplete frame, or as soon
// as a dispatched command requests the connection be closed.
func (b *Buffer) HandleRead(data []byte, dispatch Dispatcher) {
	b.State = Read
	b.incoming = append(b.incoming, data...)
	for {
		frame, n, ok := resp.Decode(b.incoming)
		if !ok {
			break
		}
		b.incoming = b.incoming[n:]
		reply, closeConn := dispatch(frame)
		b.outgoing = reply.Encode(b.outgoing)
		if closeConn {
			b.State = Close
			return
		}
	}
	if len(b.outgoing) > 0 {
		b.State = Write
	} else {
		b.State = Idle
	}
}

// HandleWrite hands the caller every byte queued for output and clears the
// queue. It is the event loop's job to actually write these to the socket;
// once taken, the Buffer returns to Idle unless it was already in Close.
func (b *Buffer) HandleWrite() []byte {
	out := b.outgoing
	b.outgoing = nil
	if b.State != Close {
		b.State = Idle
	}
	return out
}

// Pending reports whether there is output queued and not yet taken by
// HandleWrite.
func (b *Buffer) Pending() bool {
	return len(b.outgoing) > 0
}

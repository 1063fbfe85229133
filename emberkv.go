// Package emberkv implements a single-node, in-memory RESP2/RESP3
// key/value server. It wires a non-blocking event loop (panjf2000/gnet/v2)
// to a RESP codec, a command registry, and an expiring keyspace.
//
// # Basic usage
//
//	ks := store.New(store.RealClock)
//	reg := command.NewRegistry()
//	command.RegisterAll(reg, ks)
//
//	hub := emberkv.NewHub(reg, ks, logger)
//	err := emberkv.ListenAndServe("tcp://127.0.0.1:1234", emberkv.Options{}, hub)
package emberkv

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emberkv/emberkv/pkg/command"
	"github.com/emberkv/emberkv/pkg/conn"
	"github.com/emberkv/emberkv/pkg/resp"
	"github.com/emberkv/emberkv/pkg/store"
	"github.com/google/uuid"
	"github.com/panjf2000/gnet/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Action mirrors gnet.Action for the subset of outcomes this server uses.
type Action int

const (
	// None leaves the connection open and the server running.
	None Action = iota
	// Close tears down the one connection.
	Close
	// Shutdown stops the whole server.
	Shutdown
)

// Conn wraps a gnet.Conn, matching the shape of the event-loop library this
// server is built on.
type Conn struct {
	gnet.Conn
}

// Options configures a Hub's event loop and listener.
type Options struct {
	Multicore        bool
	LockOSThread     bool
	ReadBufferCap    int
	LB               gnet.LoadBalancing
	NumEventLoop     int
	ReusePort        bool
	Ticker           bool
	TCPKeepAlive     time.Duration
	TCPKeepCount     int
	TCPKeepInterval  time.Duration
	TCPNoDelay       gnet.TCPSocketOpt
	SocketRecvBuffer int
	SocketSendBuffer int
	EdgeTriggeredIO  bool

	// TLSListenEnable starts a TLS listener alongside the TCP one,
	// forwarding decrypted bytes to it over a loopback connection.
	TLSListenEnable bool
	TLSCertFile     string
	TLSKeyFile      string
	TLSAddr         string
}

// Hub is the gnet.EventHandler implementation tying the event loop to the
// command registry and keyspace. One Hub serves one keyspace; connections
// are distributed across event loops by gnet when Options.Multicore is set.
type Hub struct {
	registry *command.Registry
	keyspace *store.Keyspace
	logger   *zap.Logger

	bufMap  map[gnet.Conn]*conn.Buffer
	bufSync sync.RWMutex
	mu      sync.Mutex
	addr    string
	tcpAddr string
	running bool
	engine  gnet.Engine
	tlsLn   net.Listener
}

// NewHub builds a Hub dispatching every request against reg and ks. logger
// may be nil, in which case connection lifecycle events are not logged.
func NewHub(reg *command.Registry, ks *store.Keyspace, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry: reg,
		keyspace: ks,
		logger:   logger,
		bufMap:   make(map[gnet.Conn]*conn.Buffer),
	}
}

// OnBoot records the engine handle gnet hands back once listening begins.
func (h *Hub) OnBoot(eng gnet.Engine) gnet.Action {
	h.mu.Lock()
	h.engine = eng
	h.mu.Unlock()
	return gnet.None
}

// OnShutdown is a no-op hook kept for symmetry with gnet.EventHandler.
func (h *Hub) OnShutdown(gnet.Engine) {}

// OnOpen allocates a fresh Buffer for the new connection and tags it with a
// UUID for log correlation.
func (h *Hub) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	id := uuid.New().String()
	c.SetContext(id)

	h.bufSync.Lock()
	h.bufMap[c] = conn.New()
	h.bufSync.Unlock()

	h.logger.Debug("connection opened", zap.String("conn_id", id), zap.String("remote", c.RemoteAddr().String()))
	return nil, gnet.None
}

// OnClose releases the connection's Buffer.
func (h *Hub) OnClose(c gnet.Conn, err error) gnet.Action {
	h.bufSync.Lock()
	delete(h.bufMap, c)
	h.bufSync.Unlock()

	id, _ := c.Context().(string)
	if err != nil {
		h.logger.Debug("connection closed", zap.String("conn_id", id), zap.Error(err))
	} else {
		h.logger.Debug("connection closed", zap.String("conn_id", id))
	}
	return gnet.None
}

// OnTraffic reads everything currently available, feeds it through the
// connection's Buffer, and writes back whatever replies the Buffer queued.
func (h *Hub) OnTraffic(c gnet.Conn) gnet.Action {
	h.bufSync.RLock()
	cb, ok := h.bufMap[c]
	h.bufSync.RUnlock()
	if !ok {
		_, _ = c.Write(resp.Error("ERR client is closed").Encode(nil))
		return gnet.None
	}

	data, err := c.Next(-1)
	if err != nil {
		return gnet.None
	}
	if len(data) == 0 {
		return gnet.None
	}

	cb.HandleRead(data, func(frame resp.Value) (resp.Value, bool) {
		return h.dispatch(frame)
	})

	if out := cb.HandleWrite(); len(out) > 0 {
		_, _ = c.Write(out)
	}

	if cb.State == conn.Close {
		return gnet.Close
	}
	return gnet.None
}

// dispatch pulls the command name and arguments out of a decoded request
// frame (a RESP array of bulk strings) and runs it against the registry.
func (h *Hub) dispatch(frame resp.Value) (resp.Value, bool) {
	parts := frame.ToArraySafe()
	if len(parts) == 0 {
		return resp.Error("ERR empty command"), false
	}
	name := string(parts[0].Str)
	res := h.registry.Dispatch(h.keyspace, name, parts[1:])
	return res.Reply, res.Close
}

// OnTick is unused; this server registers no periodic work.
func (h *Hub) OnTick() (time.Duration, gnet.Action) {
	return 0, gnet.None
}

// deriveTLSAddr shifts the TCP listen port up by one to build a default TLS
// listen address when none is given explicitly.
func deriveTLSAddr(tcpAddr string) string {
	if !strings.HasPrefix(tcpAddr, "tcp://") {
		return ""
	}
	hostPort := strings.TrimPrefix(tcpAddr, "tcp://")
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return ""
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ""
	}
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(port+1))
}

// startTLSListener accepts TLS connections and forwards their decrypted
// bytes to the plain-TCP listener gnet is already running, so TLS support
// needs no changes to the RESP-handling path above.
func (h *Hub) startTLSListener(options Options) error {
	cert, err := tls.LoadX509KeyPair(options.TLSCertFile, options.TLSKeyFile)
	if err != nil {
		return errors.Wrap(err, "emberkv: loading TLS certificate")
	}

	tlsAddr := options.TLSAddr
	if tlsAddr == "" {
		tlsAddr = deriveTLSAddr(h.tcpAddr)
		if tlsAddr == "" {
			return errors.New("emberkv: could not derive TLS address from TCP address")
		}
	}
	listenAddr := strings.TrimPrefix(tlsAddr, "tcp://")

	h.tlsLn, err = tls.Listen("tcp", listenAddr, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return errors.Wrap(err, "emberkv: starting TLS listener")
	}

	tcpForwardAddr := strings.TrimPrefix(h.tcpAddr, "tcp://")
	go h.acceptTLSConnections(tcpForwardAddr)
	return nil
}

func (h *Hub) acceptTLSConnections(tcpAddr string) {
	for {
		tlsConn, err := h.tlsLn.Accept()
		if err != nil {
			h.mu.Lock()
			running := h.running
			h.mu.Unlock()
			if !running {
				return
			}
			continue
		}
		go h.handleTLSConn(tlsConn, tcpAddr)
	}
}

// handleTLSConn pipes bytes in both directions between a TLS client and the
// plaintext TCP listener, using an errgroup to wait for both directions to
// finish before releasing the sockets.
func (h *Hub) handleTLSConn(tlsConn net.Conn, tcpAddr string) {
	defer tlsConn.Close()

	tcpConn, err := net.Dial("tcp", tcpAddr)
	if err != nil {
		return
	}
	defer tcpConn.Close()

	var g errgroup.Group
	g.Go(func() error { return pipe(tcpConn, tlsConn) })
	g.Go(func() error { return pipe(tlsConn, tcpConn) })
	_ = g.Wait()
}

func pipe(dst net.Conn, src net.Conn) error {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if err != nil {
			return err
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			return err
		}
	}
}

// ListenAndServe starts h on addr (e.g. "tcp://127.0.0.1:1234") and blocks
// until the server stops.
func ListenAndServe(addr string, options Options, h *Hub) error {
	if options.TLSListenEnable && (options.TLSCertFile == "" || options.TLSKeyFile == "") {
		return errors.New("emberkv: TLSListenEnable requires TLSCertFile and TLSKeyFile")
	}

	var opts []gnet.Option
	if options.Multicore {
		opts = append(opts, gnet.WithMulticore(true))
	}
	if options.LockOSThread {
		opts = append(opts, gnet.WithLockOSThread(true))
	}
	if options.ReadBufferCap > 0 {
		opts = append(opts, gnet.WithReadBufferCap(options.ReadBufferCap))
	}
	if options.NumEventLoop > 0 {
		opts = append(opts, gnet.WithNumEventLoop(options.NumEventLoop))
	} else if options.LB != gnet.RoundRobin {
		opts = append(opts, gnet.WithLoadBalancing(options.LB))
	}
	if options.ReusePort {
		opts = append(opts, gnet.WithReusePort(true))
	}
	if options.Ticker {
		opts = append(opts, gnet.WithTicker(true))
	}
	if options.TCPKeepAlive > 0 {
		opts = append(opts, gnet.WithTCPKeepAlive(options.TCPKeepAlive))
	}
	if options.TCPKeepCount > 0 {
		opts = append(opts, gnet.WithTCPKeepCount(options.TCPKeepCount))
	}
	if options.TCPKeepInterval > 0 {
		opts = append(opts, gnet.WithTCPKeepInterval(options.TCPKeepInterval))
	}
	opts = append(opts, gnet.WithTCPNoDelay(options.TCPNoDelay))
	if options.SocketRecvBuffer > 0 {
		opts = append(opts, gnet.WithSocketRecvBuffer(options.SocketRecvBuffer))
	}
	if options.SocketSendBuffer > 0 {
		opts = append(opts, gnet.WithSocketSendBuffer(options.SocketSendBuffer))
	}
	if options.EdgeTriggeredIO {
		opts = append(opts, gnet.WithEdgeTriggeredIO(true))
	}

	h.mu.Lock()
	h.addr = addr
	h.tcpAddr = addr
	h.running = true
	h.mu.Unlock()

	if options.TLSListenEnable {
		if err := h.startTLSListener(options); err != nil {
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return err
		}
	}

	err := gnet.Run(h, addr, opts...)

	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	if h.tlsLn != nil {
		_ = h.tlsLn.Close()
	}
	return err
}

// Close gracefully stops h. It is an error to call this when h is not
// currently serving.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return errors.New("emberkv: server not running")
	}
	h.running = false
	if h.tlsLn != nil {
		_ = h.tlsLn.Close()
	}
	return h.engine.Stop(context.Background())
}

package emberkv

import (
	"net"
	"testing"

	"github.com/emberkv/emberkv/pkg/command"
	"github.com/emberkv/emberkv/pkg/store"
	"github.com/panjf2000/gnet/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	gnet.Conn
	closed  bool
	written []byte
	buf     []byte
	ctx     interface{}
}

func (m *mockConn) Write(buf []byte) (n int, err error) {
	m.written = append(m.written, buf...)
	return len(buf), nil
}

func (m *mockConn) Writev(bufs [][]byte) (n int, err error) {
	for _, buf := range bufs {
		m.written = append(m.written, buf...)
		n += len(buf)
	}
	return n, nil
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

func (m *mockConn) Next(n int) (buf []byte, err error) {
	if len(m.buf) == 0 {
		return nil, nil
	}
	if n == -1 || n > len(m.buf) {
		buf = make([]byte, len(m.buf))
		copy(buf, m.buf)
		m.buf = nil
		return buf, nil
	}
	buf = make([]byte, n)
	copy(buf, m.buf[:n])
	m.buf = m.buf[n:]
	return buf, nil
}

func (m *mockConn) AsyncWrite(buf []byte, callback gnet.AsyncCallback) error {
	m.written = append(m.written, buf...)
	return nil
}

func (m *mockConn) Context() interface{}     { return m.ctx }
func (m *mockConn) SetContext(v interface{}) { m.ctx = v }
func (m *mockConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 6379}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ks := store.New(store.RealClock)
	reg := command.NewRegistry()
	require.NoError(t, command.RegisterAll(reg, ks))
	return NewHub(reg, ks, nil)
}

func TestNewHub(t *testing.T) {
	h := newTestHub(t)
	assert.NotNil(t, h.bufMap)
}

func TestOnOpenAllocatesBufferAndContext(t *testing.T) {
	h := newTestHub(t)
	mock := &mockConn{}

	out, action := h.OnOpen(mock)
	assert.Nil(t, out)
	assert.Equal(t, gnet.None, action)
	assert.NotEmpty(t, mock.ctx, "OnOpen must tag the connection with an id")

	h.bufSync.RLock()
	_, ok := h.bufMap[mock]
	h.bufSync.RUnlock()
	assert.True(t, ok)
}

func TestOnCloseRemovesBuffer(t *testing.T) {
	h := newTestHub(t)
	mock := &mockConn{}
	h.OnOpen(mock)

	action := h.OnClose(mock, nil)
	assert.Equal(t, gnet.None, action)

	h.bufSync.RLock()
	_, ok := h.bufMap[mock]
	h.bufSync.RUnlock()
	assert.False(t, ok)
}

func TestOnTrafficRespondsToPing(t *testing.T) {
	h := newTestHub(t)
	mock := &mockConn{buf: []byte("*1\r\n$4\r\nPING\r\n")}
	h.OnOpen(mock)

	action := h.OnTraffic(mock)
	assert.Equal(t, gnet.None, action)
	assert.Equal(t, "$4\r\nPONG\r\n", string(mock.written))
}

func TestOnTrafficHandlesSetAndGet(t *testing.T) {
	h := newTestHub(t)
	mock := &mockConn{buf: []byte(
		"*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n" +
			"*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")}
	h.OnOpen(mock)

	h.OnTraffic(mock)
	assert.Equal(t, "$2\r\nOK\r\n$1\r\nv\r\n", string(mock.written))
}

func TestOnTrafficClosesOnQuit(t *testing.T) {
	h := newTestHub(t)
	mock := &mockConn{buf: []byte("*1\r\n$4\r\nQUIT\r\n")}
	h.OnOpen(mock)

	action := h.OnTraffic(mock)
	assert.Equal(t, gnet.Close, action)
	assert.Equal(t, "$2\r\nOK\r\n", string(mock.written))
}

func TestOnTrafficUnknownConnection(t *testing.T) {
	h := newTestHub(t)
	mock := &mockConn{}
	action := h.OnTraffic(mock)
	assert.Equal(t, gnet.None, action)
	assert.Contains(t, string(mock.written), "client is closed")
}

func TestDeriveTLSAddr(t *testing.T) {
	assert.Equal(t, "tcp://127.0.0.1:1235", deriveTLSAddr("tcp://127.0.0.1:1234"))
	assert.Equal(t, "", deriveTLSAddr("127.0.0.1:1234"))
}

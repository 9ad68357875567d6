package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

const readBufferSize = 64 * 1024

var errBadHandle = errors.New("invalid handle")

// TCPNetwork implements Network over plain TCP sockets.
type TCPNetwork struct {
	mu        sync.Mutex
	nextID    int64
	listeners map[int64]net.Listener
	conns     map[int64]net.Conn
}

func NewTCPNetwork() *TCPNetwork {
	return &TCPNetwork{
		nextID:    1,
		listeners: make(map[int64]net.Listener),
		conns:     make(map[int64]net.Conn),
	}
}

func (n *TCPNetwork) track(l net.Listener, c net.Conn) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	if l != nil {
		n.listeners[id] = l
	} else {
		n.conns[id] = c
	}
	return id
}

func (n *TCPNetwork) listener(handle int64) (net.Listener, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.listeners[handle]
	return l, ok
}

func (n *TCPNetwork) conn(handle int64) (net.Conn, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.conns[handle]
	return c, ok
}

func (n *TCPNetwork) Listen(ctx context.Context, port int) (int64, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, err
	}
	return n.track(l, nil), nil
}

// Addr returns the bound address of a listener handle.
func (n *TCPNetwork) Addr(handle int64) (net.Addr, bool) {
	l, ok := n.listener(handle)
	if !ok {
		return nil, false
	}
	return l.Addr(), true
}

func (n *TCPNetwork) Accept(ctx context.Context, handle int64) (int64, error) {
	l, ok := n.listener(handle)
	if !ok {
		return 0, errBadHandle
	}
	c, err := l.Accept()
	if err != nil {
		return 0, err
	}
	return n.track(nil, c), nil
}

// Read returns the next chunk the peer sent. A closed peer reads as an
// empty string.
func (n *TCPNetwork) Read(ctx context.Context, handle int64) (string, error) {
	c, ok := n.conn(handle)
	if !ok {
		return "", errBadHandle
	}
	buf := make([]byte, readBufferSize)
	read, err := c.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return string(buf[:read]), nil
}

func (n *TCPNetwork) Write(ctx context.Context, handle int64, data string) error {
	c, ok := n.conn(handle)
	if !ok {
		return errBadHandle
	}
	_, err := io.WriteString(c, data)
	return err
}

func (n *TCPNetwork) Close(ctx context.Context, handle int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if l, ok := n.listeners[handle]; ok {
		delete(n.listeners, handle)
		return l.Close()
	}
	if c, ok := n.conns[handle]; ok {
		delete(n.conns, handle)
		return c.Close()
	}
	return errBadHandle
}

func (n *TCPNetwork) Connect(ctx context.Context, host string, port int) (int64, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return 0, err
	}
	return n.track(nil, c), nil
}

// CloseAll releases every handle still open.
func (n *TCPNetwork) CloseAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, l := range n.listeners {
		l.Close()
		delete(n.listeners, id)
	}
	for id, c := range n.conns {
		c.Close()
		delete(n.conns, id)
	}
}

// MockNetwork answers every call with canned handles and records writes.
type MockNetwork struct {
	mu sync.Mutex
	// Request is what Read returns; it defaults to a bare GET.
	Request string
	// Fail makes every call return an error.
	Fail   bool
	Writes []string
}

var errMockFailure = errors.New("mock network failure")

func (m *MockNetwork) Listen(ctx context.Context, port int) (int64, error) {
	if m.Fail {
		return 0, errMockFailure
	}
	return 1, nil
}

func (m *MockNetwork) Accept(ctx context.Context, handle int64) (int64, error) {
	if m.Fail {
		return 0, errMockFailure
	}
	return 2, nil
}

func (m *MockNetwork) Read(ctx context.Context, handle int64) (string, error) {
	if m.Fail {
		return "", errMockFailure
	}
	if m.Request == "" {
		return "GET / HTTP/1.1\r\n\r\n", nil
	}
	return m.Request, nil
}

func (m *MockNetwork) Write(ctx context.Context, handle int64, data string) error {
	if m.Fail {
		return errMockFailure
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, data)
	return nil
}

func (m *MockNetwork) Close(ctx context.Context, handle int64) error {
	if m.Fail {
		return errMockFailure
	}
	return nil
}

func (m *MockNetwork) Connect(ctx context.Context, host string, port int) (int64, error) {
	if m.Fail {
		return 0, errMockFailure
	}
	return 3, nil
}

// Written returns a copy of everything written so far.
func (m *MockNetwork) Written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Writes...)
}

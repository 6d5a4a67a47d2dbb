package base

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/cockroachdb/errors"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	bufferSize int

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport.
// Requests of one connection are handled strictly in order since the
// protocol allows only one exchange at a time.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	if bufferSize <= 0 {
		bufferSize = defaultReadBufferSize
	}
	return &serverTransport{
		connector:  connector,
		bufferSize: bufferSize,
		conns:      make(map[net.Conn]struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return errors.Wrap(err, "failed to create listener")
	}

	t.mu.Lock()
	t.listener = listener
	t.closed = false
	t.mu.Unlock()

	Logger.Infof("Listening with %s transport on %s", t.connector.GetName(), listener.Addr())
	return nil
}

func (t *serverTransport) Serve() error {
	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()
	if listener == nil {
		return errors.New("serve called before listen")
	}

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				t.wg.Wait()
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
			Logger.Errorf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		// Close may have walked the connections already
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			_ = conn.Close()
			continue
		}
		t.conns[conn] = struct{}{}
		t.wg.Add(1)
		t.mu.Unlock()

		// Handle the connection in a goroutine
		go func() {
			defer t.wg.Done()
			t.handleConnection(conn)
		}()
	}
}

func (t *serverTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for conn := range t.conns {
		_ = conn.Close()
	}
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles the requests of one connection in order
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, conn)
		t.mu.Unlock()
		_ = conn.Close()
	}()

	// Timeout in seconds
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	reader := bufio.NewReaderSize(conn, t.bufferSize)
	state := &transport.ServerConnState{RemoteAddr: conn.RemoteAddr().String()}

	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				return
			}
		}

		// The marker expectation follows the capabilities negotiated before this request
		req, err := readFrame(reader, state.Capabilities.HasDataTagging)

		// Case EOF: Connection closed by client
		if err == io.EOF || errors.Is(err, net.ErrClosed) {
			Logger.Infof("Connection closed by %s", state.RemoteAddr)
			return
		}

		// Case error: log and close connection
		if err != nil {
			Logger.Errorf("Error reading request from %s: %v", state.RemoteAddr, err)
			return
		}

		tagged := state.Capabilities.HasDataTagging
		start := time.Now()
		resp := t.handler(state, req)
		Logger.Debugf("Processed %s from %s took %s", req.Header.CommandType, state.RemoteAddr, time.Since(start))

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		if err := writeFrame(conn, resp, tagged); err != nil {
			Logger.Errorf("Failed to write response to %s: %v", state.RemoteAddr, err)
			return
		}
	}
}

package base

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger(common.LoggerTransport)

const (
	defaultReadBufferSize  = 8096
	defaultWriteBufferSize = 8096
)

var (
	bytesSent     = gometrics.GetOrRegisterCounter("drsc.transport.bytes_sent", gometrics.DefaultRegistry)
	bytesReceived = gometrics.GetOrRegisterCounter("drsc.transport.bytes_received", gometrics.DefaultRegistry)
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Connection owns a buffered byte stream and the capabilities negotiated on it.
// It implements transport.IConnection and is not safe for concurrent use.
type Connection struct {
	connector IClientConnector
	config    common.ClientConfig

	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	address string

	caps common.Capabilities

	// ioFailed is set when an I/O call failed since the last rollback,
	// the stream position is undefined afterwards
	ioFailed bool
	// midFrame is set while a response frame is read and cleared once its
	// confirmation was consumed
	midFrame bool
}

// initialCapabilities are assumed before a Connect exchange completed
func initialCapabilities() common.Capabilities {
	return common.Capabilities{RemotingVersion: common.RemotingVersionRecent}
}

// NewConnection creates a connection using the given connector.
// No I/O happens before Connect is called.
func NewConnection(connector IClientConnector, config common.ClientConfig) *Connection {
	return &Connection{
		connector: connector,
		config:    config,
		caps:      initialCapabilities(),
	}
}

// Connect opens the stream to address
func (c *Connection) Connect(address string) error {
	if c.conn != nil {
		return errors.Wrapf(common.ErrInvalidOperation, "already connected to %s", c.address)
	}

	conn, err := c.connector.Connect(address)
	if err != nil {
		return common.WrapIOError(err, "connect to "+address)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.connector.UpgradeConnection(conn, c.config); err != nil {
		_ = conn.Close()
		return common.WrapIOError(err, "upgrade connection to "+address)
	}

	readSize := defaultReadBufferSize
	if c.config.Transport.ReadBufferSize > 0 {
		readSize = c.config.Transport.ReadBufferSize
	}
	writeSize := defaultWriteBufferSize
	if c.config.Transport.WriteBufferSize > 0 {
		writeSize = c.config.Transport.WriteBufferSize
	}

	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, readSize)
	c.writer = bufio.NewWriterSize(conn, writeSize)
	c.address = address
	c.caps = initialCapabilities()
	c.ioFailed = false
	c.midFrame = false

	Logger.Infof("Connected to %s using %s transport", address, c.connector.GetName())
	return nil
}

// Disconnect closes the stream and forgets the negotiated capabilities.
// Disconnecting a closed connection is a no-op.
func (c *Connection) Disconnect() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	Logger.Infof("Disconnected from %s", c.address)

	c.conn = nil
	c.reader = nil
	c.writer = nil
	c.caps = initialCapabilities()
	c.ioFailed = false
	c.midFrame = false

	if err != nil {
		return common.WrapIOError(err, "close")
	}
	return nil
}

// Address returns the address of the last Connect call
func (c *Connection) Address() string {
	return c.address
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnection)
// --------------------------------------------------------------------------

func (c *Connection) IsConnected() bool {
	return c.conn != nil
}

func (c *Connection) Capabilities() common.Capabilities {
	return c.caps
}

func (c *Connection) ApplyCapabilities(caps common.Capabilities) {
	Logger.Debugf("Negotiated capabilities with %s: %s", c.address, caps)
	c.caps = caps
}

func (c *Connection) Send(data []byte) error {
	if c.conn == nil {
		return errors.Mark(errors.New("send on closed connection"), common.ErrConnection)
	}
	n, err := c.writer.Write(data)
	if err != nil {
		c.ioFailed = true
		return common.WrapIOError(err, "send")
	}
	bytesSent.Inc(int64(n))
	return nil
}

func (c *Connection) Flush() error {
	if c.conn == nil {
		return errors.Mark(errors.New("flush on closed connection"), common.ErrConnection)
	}
	if err := c.writer.Flush(); err != nil {
		c.ioFailed = true
		return common.WrapIOError(err, "flush")
	}
	return nil
}

func (c *Connection) Receive(n int) ([]byte, error) {
	if c.conn == nil {
		return nil, errors.Mark(errors.New("receive on closed connection"), common.ErrConnection)
	}
	if n <= 0 {
		return []byte{}, nil
	}

	c.midFrame = true
	buf := make([]byte, n)
	read, err := io.ReadFull(c.reader, buf)
	bytesReceived.Inc(int64(read))
	if err != nil {
		c.ioFailed = true
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.Mark(errors.Wrapf(err, "short read: got %d of %d bytes", read, n), common.ErrConnection)
		}
		return nil, common.WrapIOError(err, "receive")
	}
	return buf, nil
}

func (c *Connection) WriteConfirmation() error {
	if !c.caps.HasDataTagging {
		return nil
	}
	return c.Send([]byte{common.DataTagEnd})
}

func (c *Connection) ConsumeConfirmation() error {
	if c.caps.HasDataTagging {
		b, err := c.Receive(1)
		if err != nil {
			return err
		}
		if b[0] != common.DataTagEnd {
			return common.NewDecodingError("protocol violation - missing data tag end in response, got 0x%02x", b[0])
		}
	}
	c.midFrame = false
	return nil
}

func (c *Connection) SetDeadline(t time.Time) error {
	if c.conn == nil {
		return common.ErrNotConnected
	}
	return c.conn.SetDeadline(t)
}

func (c *Connection) Rollback() {
	if c.conn == nil {
		return
	}

	// An I/O failure (timeout, short read, broken pipe) leaves the stream at an
	// unknown position, such a connection cannot be resynchronized.
	if c.ioFailed {
		Logger.Warningf("Closing connection to %s after failed exchange", c.address)
		_ = c.Disconnect()
		return
	}

	// The rest of a partly read response may still be in flight, the next
	// header would be read from the middle of it.
	if c.midFrame {
		Logger.Warningf("Closing connection to %s after incomplete response", c.address)
		_ = c.Disconnect()
		return
	}

	if buffered := c.reader.Buffered(); buffered > 0 {
		Logger.Debugf("Discarding %d unread bytes from %s", buffered, c.address)
		_, _ = c.reader.Discard(buffered)
	}
	if buffered := c.writer.Buffered(); buffered > 0 {
		Logger.Debugf("Discarding %d unsent bytes to %s", buffered, c.address)
		c.writer.Reset(c.conn)
	}
	_ = c.conn.SetDeadline(time.Time{})
}

package base

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/cockroachdb/errors"
)

// pipeConnector hands out in-memory connections, the peer end is kept for the test
type pipeConnector struct {
	peer net.Conn
}

func (p *pipeConnector) Connect(string) (net.Conn, error) {
	client, server := net.Pipe()
	p.peer = server
	return client, nil
}

func (p *pipeConnector) GetName() string {
	return "pipe"
}

func (p *pipeConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// newPipeConnection creates a connected Connection and returns the peer end
func newPipeConnection(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	connector := &pipeConnector{}
	conn := NewConnection(connector, common.DefaultClientConfig())
	if err := conn.Connect("pipe"); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Disconnect()
		_ = connector.peer.Close()
	})
	return conn, connector.peer
}

// TestNotConnected tests that all primitives fail on a closed connection
func TestNotConnected(t *testing.T) {
	conn := NewConnection(&pipeConnector{}, common.DefaultClientConfig())

	if conn.IsConnected() {
		t.Fatalf("New connection must not be connected")
	}
	if err := conn.Send([]byte{1}); !errors.Is(err, common.ErrConnection) {
		t.Errorf("Send: expected connection error, got %v", err)
	}
	if err := conn.Flush(); !errors.Is(err, common.ErrConnection) {
		t.Errorf("Flush: expected connection error, got %v", err)
	}
	if _, err := conn.Receive(1); !errors.Is(err, common.ErrConnection) {
		t.Errorf("Receive: expected connection error, got %v", err)
	}

	// must not panic
	conn.Rollback()
	conn.Rollback()
}

// TestConnectTwice tests that a second Connect is refused
func TestConnectTwice(t *testing.T) {
	conn, _ := newPipeConnection(t)
	if err := conn.Connect("pipe"); !errors.Is(err, common.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation, got %v", err)
	}
}

// TestSendIsBuffered tests that nothing reaches the wire before Flush
func TestSendIsBuffered(t *testing.T) {
	conn, peer := newPipeConnection(t)

	if err := conn.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 5)
		_, _ = io.ReadFull(peer, buf)
		received <- buf
	}()

	select {
	case <-received:
		t.Fatalf("Data reached the peer before Flush")
	case <-time.After(20 * time.Millisecond):
	}

	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := <-received; !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Peer received %q", got)
	}
}

// TestShortRead tests that a stream closed before n bytes arrived fails with a connection error
func TestShortRead(t *testing.T) {
	conn, peer := newPipeConnection(t)

	go func() {
		_, _ = peer.Write([]byte{1, 2, 3})
		_ = peer.Close()
	}()

	_, err := conn.Receive(5)
	if !errors.Is(err, common.ErrConnection) {
		t.Fatalf("Expected connection error, got %v", err)
	}

	conn.Rollback()
	if conn.IsConnected() {
		t.Errorf("Connection must be closed after a rollback following an I/O failure")
	}
	conn.Rollback()
}

// TestReceiveTimeout tests that a passed deadline is reported as timeout
func TestReceiveTimeout(t *testing.T) {
	conn, _ := newPipeConnection(t)

	if err := conn.SetDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetDeadline failed: %v", err)
	}
	_, err := conn.Receive(1)
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}
	if errors.Is(err, common.ErrConnection) {
		t.Errorf("Timeout must not be classified as connection error")
	}
}

// TestRollbackDiscardsBufferedState tests that a rollback on a frame boundary keeps the connection usable
func TestRollbackDiscardsBufferedState(t *testing.T) {
	conn, peer := newPipeConnection(t)

	go func() {
		_, _ = peer.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	}()

	if _, err := conn.Receive(4); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if err := conn.ConsumeConfirmation(); err != nil {
		t.Fatalf("ConsumeConfirmation failed: %v", err)
	}
	if err := conn.Send([]byte("partial")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	conn.Rollback()

	if !conn.IsConnected() {
		t.Fatalf("Connection must stay open")
	}
	if conn.reader.Buffered() != 0 {
		t.Errorf("Expected no buffered read data, got %d bytes", conn.reader.Buffered())
	}
	if conn.writer.Buffered() != 0 {
		t.Errorf("Expected no buffered write data, got %d bytes", conn.writer.Buffered())
	}

	// second rollback is a no-op
	conn.Rollback()
	if !conn.IsConnected() {
		t.Errorf("Second rollback closed the connection")
	}
}

// TestRollbackClosesIncompleteResponse tests that a rollback in the middle of a response closes the stream
func TestRollbackClosesIncompleteResponse(t *testing.T) {
	tests := []struct {
		name    string
		tagged  bool
		consume func(conn *Connection) error
	}{
		{
			name: "header only",
			consume: func(conn *Connection) error {
				_, err := conn.Receive(4)
				return err
			},
		},
		{
			name:   "wrong marker",
			tagged: true,
			consume: func(conn *Connection) error {
				if _, err := conn.Receive(4); err != nil {
					return err
				}
				if err := conn.ConsumeConfirmation(); !errors.Is(err, common.ErrDecoding) {
					return errors.Newf("expected decoding error, got %v", err)
				}
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, peer := newPipeConnection(t)
			conn.ApplyCapabilities(common.Capabilities{RemotingVersion: 3, HasDataTagging: tt.tagged})

			go func() {
				_, _ = peer.Write([]byte{1, 2, 3, 4, 0x00})
			}()

			if err := tt.consume(conn); err != nil {
				t.Fatalf("Reading failed: %v", err)
			}

			conn.Rollback()
			if conn.IsConnected() {
				t.Errorf("Connection must be closed after an incomplete response")
			}
		})
	}
}

// TestConfirmationMarker tests the data tag end marker handling
func TestConfirmationMarker(t *testing.T) {
	conn, peer := newPipeConnection(t)

	// without data tagging the marker is neither written nor expected
	if err := conn.WriteConfirmation(); err != nil {
		t.Fatalf("WriteConfirmation failed: %v", err)
	}
	if conn.writer.Buffered() != 0 {
		t.Errorf("Marker written without data tagging")
	}
	if err := conn.ConsumeConfirmation(); err != nil {
		t.Fatalf("ConsumeConfirmation failed: %v", err)
	}

	conn.ApplyCapabilities(common.Capabilities{RemotingVersion: 3, HasDataTagging: true})

	if err := conn.WriteConfirmation(); err != nil {
		t.Fatalf("WriteConfirmation failed: %v", err)
	}
	if conn.writer.Buffered() != 1 {
		t.Errorf("Expected marker to be buffered")
	}
	conn.Rollback()

	go func() {
		_, _ = peer.Write([]byte{0x00})
	}()
	if err := conn.ConsumeConfirmation(); !errors.Is(err, common.ErrDecoding) {
		t.Errorf("Expected decoding error for a wrong marker, got %v", err)
	}
}

// TestDisconnectResetsCapabilities tests that capabilities do not survive a disconnect
func TestDisconnectResetsCapabilities(t *testing.T) {
	conn, _ := newPipeConnection(t)
	conn.ApplyCapabilities(common.Capabilities{RemotingVersion: 2, HasDataTagging: true, HasDatagramming: true})

	if err := conn.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if conn.Capabilities() != initialCapabilities() {
		t.Errorf("Expected initial capabilities, got %s", conn.Capabilities())
	}
	if err := conn.Disconnect(); err != nil {
		t.Errorf("Second disconnect must be a no-op, got %v", err)
	}
}

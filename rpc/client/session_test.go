package client

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/server"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/ValentinKolb/dRSC/rpc/transport/tcp"
	"github.com/ValentinKolb/dRSC/rpc/transport/unix"
	"github.com/VictoriaMetrics/metrics"
)

const (
	testProvider = "Arp.Plc.Domain"
	testService  = "Arp.Plc.Domain.Services.IPlcManagerService"
)

// startDevice starts a simulator on a random local port
func startDevice(t *testing.T, serverTransport transport.IRPCServerTransport, endpoint string) *server.DeviceServer {
	t.Helper()
	config := common.ServerConfig{
		Endpoint:        endpoint,
		TimeoutSecond:   5,
		RemotingVersion: common.RemotingVersionRecent,
		DataTagging:     true,
		Datagramming:    false,
		Providers: map[string][]string{
			testProvider: {testService},
		},
	}

	s, err := server.NewDeviceServer(config, serverTransport)
	if err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start device: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newTestSession connects a session to a tcp simulator
func newTestSession(t *testing.T, configure func(*common.ClientConfig)) (*Session, *server.DeviceServer) {
	t.Helper()
	device := startDevice(t, tcp.NewTCPDefaultServerTransport(), "127.0.0.1:0")

	config := common.DefaultClientConfig()
	config.Endpoint = device.Addr()
	config.TimeoutSecond = 2
	if configure != nil {
		configure(&config)
	}

	session := NewSession(config, tcp.NewTCPConnection(config))
	if err := session.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session, device
}

// TestSessionEndToEnd tests a complete session against the simulator
func TestSessionEndToEnd(t *testing.T) {
	session, device := newTestSession(t, nil)

	expected := common.Capabilities{RemotingVersion: 3, HasDataTagging: true, HasDatagramming: false}
	if caps := session.Capabilities(); caps != expected {
		t.Errorf("Expected capabilities %s, got %s", expected, caps)
	}

	provider, err := session.ProviderHandle(testProvider)
	if err != nil {
		t.Fatalf("ProviderHandle failed: %v", err)
	}
	if provider != device.Registry().ProviderHandle(testProvider) {
		t.Errorf("Expected provider handle %d, got %d", device.Registry().ProviderHandle(testProvider), provider)
	}

	// the first candidate does not exist
	service, err := session.ServiceHandle(testProvider, "Arp.Plc.Domain.Services.IUnknown", testService)
	if err != nil {
		t.Fatalf("ServiceHandle failed: %v", err)
	}
	if service == 0 {
		t.Errorf("Expected a service handle")
	}

	result, err := session.Invoke(testProvider, testService, server.EchoMethod, []byte("hello device"))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !bytes.Equal(result, []byte("hello device")) {
		t.Errorf("Unexpected result %q", result)
	}

	if err := session.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("Second close must be a no-op, got %v", err)
	}
	if err := session.Connect(); !errors.Is(err, common.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation after close, got %v", err)
	}
	if _, err := session.Invoke(testProvider, testService, server.EchoMethod, nil); !errors.Is(err, common.ErrNotConnected) {
		t.Errorf("Expected not connected after close, got %v", err)
	}
}

// TestSessionConnectTwice tests that a connected session refuses a second connect
func TestSessionConnectTwice(t *testing.T) {
	session, _ := newTestSession(t, nil)
	if err := session.Connect(); !errors.Is(err, common.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation, got %v", err)
	}
}

// TestSessionWithoutDataTagging tests a session that does not request data tagging
func TestSessionWithoutDataTagging(t *testing.T) {
	session, _ := newTestSession(t, func(c *common.ClientConfig) {
		c.RequestDataTagging = false
	})

	if session.Capabilities().HasDataTagging {
		t.Fatalf("Data tagging negotiated although not requested")
	}
	result, err := session.Invoke(testProvider, testService, server.EchoMethod, []byte{0xFF, 0x00})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !bytes.Equal(result, []byte{0xFF, 0x00}) {
		t.Errorf("Unexpected result %v", result)
	}
}

// TestSessionUnknownNames tests lookups of names the device does not know
func TestSessionUnknownNames(t *testing.T) {
	session, _ := newTestSession(t, nil)

	if _, err := session.ProviderHandle("Arp.Unknown"); !errors.Is(err, common.ErrServiceNotFound) {
		t.Errorf("Expected service not found for provider, got %v", err)
	}
	if _, err := session.ServiceHandle(testProvider, "Unknown", "AlsoUnknown"); !errors.Is(err, common.ErrServiceNotFound) {
		t.Errorf("Expected service not found for service, got %v", err)
	}
	if _, err := session.Invoke(testProvider, testService, 99, nil); !common.IsServerException(err) {
		t.Errorf("Expected server exception for unknown method, got %v", err)
	}

	// the connection is still usable
	if _, err := session.Invoke(testProvider, testService, server.EchoMethod, []byte{1}); err != nil {
		t.Errorf("Invoke after failure failed: %v", err)
	}
}

// TestSessionServerException tests that method failures reach the caller intact
func TestSessionServerException(t *testing.T) {
	session, device := newTestSession(t, nil)

	_ = device.Registry().RegisterMethod(testProvider, testService, 2, func([]byte) ([]byte, error) {
		return nil, &common.ServerException{Code: 0x0815, Message: "PLC is in STOP", Inner: []string{"state=stop"}}
	})

	_, err := session.Invoke(testProvider, testService, 2, nil)
	var se *common.ServerException
	if !errors.As(err, &se) {
		t.Fatalf("Expected server exception, got %v", err)
	}
	if se.Code != 0x0815 || se.Message != "PLC is in STOP" || len(se.Inner) != 1 || se.Inner[0] != "state=stop" {
		t.Errorf("Exception not intact: %+v", se)
	}

	if _, err := session.Invoke(testProvider, testService, server.EchoMethod, []byte{1}); err != nil {
		t.Errorf("Invoke after exception failed: %v", err)
	}
}

// TestSessionProviderMoved tests that a moved provider is followed
func TestSessionProviderMoved(t *testing.T) {
	session, device := newTestSession(t, nil)

	old, err := session.ProviderHandle(testProvider)
	if err != nil {
		t.Fatalf("ProviderHandle failed: %v", err)
	}

	moved, err := device.MoveProvider(testProvider)
	if err != nil {
		t.Fatalf("MoveProvider failed: %v", err)
	}

	// the cached provider handle is outdated now
	if cached, _ := session.ProviderHandle(testProvider); cached != old {
		t.Fatalf("Expected cached handle %d, got %d", old, cached)
	}

	if _, err := session.ServiceHandle(testProvider, testService); err != nil {
		t.Fatalf("ServiceHandle failed: %v", err)
	}
	if current, _ := session.ProviderHandle(testProvider); current != moved {
		t.Errorf("Expected provider handle %d after move, got %d", moved, current)
	}

	result, err := session.Invoke(testProvider, testService, server.EchoMethod, []byte("moved"))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !bytes.Equal(result, []byte("moved")) {
		t.Errorf("Unexpected result %q", result)
	}
}

// TestSessionProviderMovedUnknownCandidate tests that a move reported by the
// lookup of an unknown service is remembered for the next candidate
func TestSessionProviderMovedUnknownCandidate(t *testing.T) {
	session, device := newTestSession(t, nil)

	if _, err := session.ProviderHandle(testProvider); err != nil {
		t.Fatalf("ProviderHandle failed: %v", err)
	}
	moved, err := device.MoveProvider(testProvider)
	if err != nil {
		t.Fatalf("MoveProvider failed: %v", err)
	}

	lookups := metrics.GetOrCreateCounter(`drsc_server_requests_total{command="getServiceExt"}`)
	before := lookups.Get()

	if _, err := session.ServiceHandle(testProvider, "Arp.Plc.Domain.Services.IUnknown", testService); err != nil {
		t.Fatalf("ServiceHandle failed: %v", err)
	}
	if current, _ := session.ProviderHandle(testProvider); current != moved {
		t.Errorf("Expected provider handle %d after move, got %d", moved, current)
	}
	if sent := lookups.Get() - before; sent != 2 {
		t.Errorf("Expected one lookup per candidate, got %d", sent)
	}
}

// TestSessionKeepAlive tests that an idle session renews the channel
func TestSessionKeepAlive(t *testing.T) {
	lookups := metrics.GetOrCreateCounter(`drsc_server_requests_total{command="getServiceProvider"}`)

	session, _ := newTestSession(t, func(c *common.ClientConfig) {
		c.KeepAliveMs = 20
		c.KeepAliveProvider = testProvider
	})

	before := lookups.Get()
	time.Sleep(200 * time.Millisecond)

	if lookups.Get() == before {
		t.Errorf("No keep-alive exchange within 200ms")
	}
	if err := session.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestSessionUnix tests a session over a unix socket
func TestSessionUnix(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "drsc.sock")
	startDevice(t, unix.NewUnixDefaultServerTransport(), socket)

	config := common.DefaultClientConfig()
	config.Endpoint = socket
	config.Transport.Name = "unix"

	session := NewSession(config, unix.NewUnixConnection(config))
	if err := session.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer session.Close()

	result, err := session.Invoke(testProvider, testService, server.EchoMethod, []byte("unix"))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !bytes.Equal(result, []byte("unix")) {
		t.Errorf("Unexpected result %q", result)
	}
}

// TestSessionConnectFailure tests that a failed dial leaves the session reusable
func TestSessionConnectFailure(t *testing.T) {
	config := common.DefaultClientConfig()
	config.Endpoint = filepath.Join(t.TempDir(), "missing.sock")

	session := NewSession(config, unix.NewUnixConnection(config))
	if err := session.Connect(); !errors.Is(err, common.ErrConnection) {
		t.Errorf("Expected connection error, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("Close of an unconnected session failed: %v", err)
	}
}

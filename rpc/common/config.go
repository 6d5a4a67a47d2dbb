package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Shared transport configuration
// --------------------------------------------------------------------------

// SocketConf holds buffer sizes applied to every stream socket
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds options only meaningful for tcp sockets
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConfig selects and tunes the stream transport
type TransportConfig struct {
	// Name of the transport (tcp, unix)
	Name string
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all parameters of an RSC client session
type ClientConfig struct {
	// Address of the device (host:port or socket path)
	Endpoint string

	// Timeout of a single exchange, 0 selects the default
	TimeoutSecond int

	// Idle time after which the session renews the channel, 0 disables keep-alive
	KeepAliveMs int
	// Provider looked up by keep-alive exchanges
	KeepAliveProvider string

	// StrictLookup returns decoding failures of provider lookups instead of only logging them
	StrictLookup bool

	// Capabilities announced by the Connect request
	RequestDataTagging  bool
	RequestDatagramming bool

	Transport TransportConfig

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns a configuration usable against a local simulator
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:            "localhost:41100",
		TimeoutSecond:       10,
		KeepAliveMs:         0,
		KeepAliveProvider:   "Arp.Plc.Domain",
		StrictLookup:        true,
		RequestDataTagging:  true,
		RequestDatagramming: false,
		Transport: TransportConfig{
			Name:    "tcp",
			TCPConf: TCPConf{TCPNoDelay: true},
		},
		LogLevel: "info",
	}
}

// Timeout returns the exchange timeout as a duration
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Transport", c.Transport.Name)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Strict Lookup", strconv.FormatBool(c.StrictLookup))

	addSection("Capabilities")
	addField("Data Tagging", strconv.FormatBool(c.RequestDataTagging))
	addField("Datagramming", strconv.FormatBool(c.RequestDatagramming))

	addSection("Keep Alive")
	if c.KeepAliveMs > 0 {
		addField("Interval", fmt.Sprintf("%d ms", c.KeepAliveMs))
		addField("Provider", c.KeepAliveProvider)
	} else {
		addField("Interval", "disabled")
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Device simulator configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the parameters of the device simulator
type ServerConfig struct {
	// Listen address (host:port or socket path)
	Endpoint string

	// Read/write deadline per exchange, 0 disables it
	TimeoutSecond int64

	// Capabilities granted to every Connect request
	RemotingVersion uint8
	DataTagging     bool
	Datagramming    bool

	// Providers maps provider names to the service names they offer
	Providers map[string][]string

	Transport TransportConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Device Simulator")
	addField("Endpoint", c.Endpoint)
	addField("Transport", c.Transport.Name)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Capabilities")
	addField("Remoting Version", strconv.Itoa(int(c.RemotingVersion)))
	addField("Data Tagging", strconv.FormatBool(c.DataTagging))
	addField("Datagramming", strconv.FormatBool(c.Datagramming))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Providers")
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addField(name, strings.Join(c.Providers[name], ", "))
	}

	return sb.String()
}

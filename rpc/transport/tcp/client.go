package tcp

import (
	"net"
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/transport/base"
)

const dialTimeout = 10 * time.Second

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, dialTimeout)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeTCPConn(conn, config.Transport)
}

// --------------------------------------------------------------------------
// Client Connector Factory Method
// --------------------------------------------------------------------------

// NewTCPClientConnector creates a connector dialing TCP endpoints
func NewTCPClientConnector() base.IClientConnector {
	return &clientConnector{}
}

// NewTCPConnection creates a new, not yet connected, connection using TCP
func NewTCPConnection(config common.ClientConfig) *base.Connection {
	return base.NewConnection(&clientConnector{}, config)
}

package unix

import (
	"net"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("unix", endpoint)
}

func (c *clientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Client Connector Factory Method
// --------------------------------------------------------------------------

// NewUnixClientConnector creates a connector dialing Unix domain sockets
func NewUnixClientConnector() base.IClientConnector {
	return &clientConnector{}
}

// NewUnixConnection creates a new, not yet connected, connection using a Unix socket
func NewUnixConnection(config common.ClientConfig) *base.Connection {
	return base.NewConnection(&clientConnector{}, config)
}

package client

import (
	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/serializer"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Connect
// --------------------------------------------------------------------------

// Connect negotiates the capabilities of a freshly opened connection
type Connect struct {
	commandState

	// requested capabilities, the server may decline them
	DataTagging  bool
	Datagramming bool

	// Negotiated is set once the confirmation was read
	Negotiated common.Capabilities
}

// NewConnect creates a Connect command requesting the given capabilities
func NewConnect(dataTagging, datagramming bool) *Connect {
	return &Connect{DataTagging: dataTagging, Datagramming: datagramming}
}

func (c *Connect) Name() string {
	return "connect"
}

func (c *Connect) BuildRequest(_ transport.IConnection, header *serializer.CommandHeader) ([]byte, error) {
	header.CommandType = common.CmdTConnectRequest
	header.HasDataTagging = c.DataTagging
	header.HasDatagramming = c.Datagramming
	header.DataLength = 0
	return nil, nil
}

func (c *Connect) ParseResponse(conn transport.IConnection) error {
	ok, header, err := readResponseHeader(conn, common.CmdTConnectConfirmation)
	if err != nil {
		return err
	}
	if !ok {
		return readException(conn, header)
	}
	if err := expectEmptyBody(conn, header); err != nil {
		return err
	}

	// the response decides, not the request
	c.Negotiated = header.Capabilities()
	conn.ApplyCapabilities(c.Negotiated)
	return nil
}

// --------------------------------------------------------------------------
// Disconnect
// --------------------------------------------------------------------------

// Disconnect announces the end of the session, the stream itself stays open
type Disconnect struct {
	commandState
}

// NewDisconnect creates a Disconnect command
func NewDisconnect() *Disconnect {
	return &Disconnect{}
}

func (c *Disconnect) Name() string {
	return "disconnect"
}

func (c *Disconnect) BuildRequest(_ transport.IConnection, header *serializer.CommandHeader) ([]byte, error) {
	header.CommandType = common.CmdTDisconnectRequest
	header.DataLength = 0
	return nil, nil
}

func (c *Disconnect) ParseResponse(conn transport.IConnection) error {
	ok, header, err := readResponseHeader(conn, common.CmdTDisconnectConfirmation)
	if err != nil {
		return err
	}
	if !ok {
		return readException(conn, header)
	}
	return expectEmptyBody(conn, header)
}

// --------------------------------------------------------------------------
// GetServiceProviderHandle
// --------------------------------------------------------------------------

// GetServiceProviderHandle resolves a provider name to its handle
type GetServiceProviderHandle struct {
	commandState

	ProviderName string

	// ProviderHandle is 0 until the confirmation was read
	ProviderHandle uint16

	strict bool
}

// NewGetServiceProviderHandle creates a strict lookup for providerName
func NewGetServiceProviderHandle(providerName string) *GetServiceProviderHandle {
	return &GetServiceProviderHandle{ProviderName: providerName, strict: true}
}

// SetStrict selects whether a malformed response fails the command (strict)
// or is only logged and leaves ProviderHandle at 0 (lenient).
// Exceptions reported by the server fail the command in both modes.
func (c *GetServiceProviderHandle) SetStrict(strict bool) *GetServiceProviderHandle {
	c.strict = strict
	return c
}

func (c *GetServiceProviderHandle) Name() string {
	return "get_service_provider_handle"
}

func (c *GetServiceProviderHandle) BuildRequest(_ transport.IConnection, header *serializer.CommandHeader) ([]byte, error) {
	body, err := serializer.EncodeProviderRequest(c.ProviderName)
	if err != nil {
		return nil, err
	}
	header.CommandType = common.CmdTGetServiceProviderRequest
	header.DataLength = len(body)
	return body, nil
}

func (c *GetServiceProviderHandle) ParseResponse(conn transport.IConnection) error {
	handle, err := c.parse(conn)
	if err == nil {
		c.ProviderHandle = handle
		return nil
	}

	if c.strict || !errors.Is(err, common.ErrDecoding) || common.IsPeerError(err) {
		return err
	}

	// lenient mode: the unread rest of the response must not leak into the next exchange
	clientLogger.Warningf("Ignoring malformed response to provider lookup of %q: %v", c.ProviderName, err)
	conn.Rollback()
	return nil
}

func (c *GetServiceProviderHandle) parse(conn transport.IConnection) (uint16, error) {
	ok, header, err := readResponseHeader(conn, common.CmdTGetServiceProviderConfirmation)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, readException(conn, header)
	}
	if err := expectEmptyBody(conn, header); err != nil {
		return 0, err
	}
	return header.ServiceHandle, nil
}

// --------------------------------------------------------------------------
// GetServiceExtRequest
// --------------------------------------------------------------------------

// GetServiceExtRequest resolves a service name of a provider to its handle
type GetServiceExtRequest struct {
	commandState

	ProviderHandle uint16
	ServiceName    string

	// ServiceHandle is 0 until the confirmation was read
	ServiceHandle uint16

	// ConfirmedProviderHandle is set when the server answered with a
	// provider handle other than the requested one
	ConfirmedProviderHandle uint16
}

// NewGetServiceExtRequest creates a lookup of serviceName at the given provider
func NewGetServiceExtRequest(providerHandle uint16, serviceName string) *GetServiceExtRequest {
	return &GetServiceExtRequest{ProviderHandle: providerHandle, ServiceName: serviceName}
}

// ProviderHandleChanged reports whether the server moved the provider to a new handle.
// The service handle is valid for ConfirmedProviderHandle in that case.
func (c *GetServiceExtRequest) ProviderHandleChanged() bool {
	return c.ConfirmedProviderHandle != 0
}

func (c *GetServiceExtRequest) Name() string {
	return "get_service_ext_request"
}

func (c *GetServiceExtRequest) BuildRequest(_ transport.IConnection, header *serializer.CommandHeader) ([]byte, error) {
	body, err := serializer.EncodeServiceRequest(c.ProviderHandle, c.ServiceName)
	if err != nil {
		return nil, err
	}
	header.CommandType = common.CmdTGetServiceExtRequest
	header.ServiceProviderHandle = c.ProviderHandle
	header.DataLength = len(body)
	return body, nil
}

func (c *GetServiceExtRequest) ParseResponse(conn transport.IConnection) error {
	ok, header, err := readResponseHeader(conn, common.CmdTGetServiceExtConfirmation)
	if err != nil {
		return err
	}
	if !ok {
		return readException(conn, header)
	}
	if err := expectEmptyBody(conn, header); err != nil {
		return err
	}

	c.ServiceHandle = header.ServiceHandle
	if header.ServiceProviderHandle != c.ProviderHandle {
		c.ConfirmedProviderHandle = header.ServiceProviderHandle
	}
	return nil
}

// --------------------------------------------------------------------------
// Invoke
// --------------------------------------------------------------------------

// Invoke calls a method of a resolved service with opaque argument bytes
type Invoke struct {
	commandState

	ProviderHandle uint16
	ServiceHandle  uint16
	MethodHandle   uint16
	Args           []byte

	// Result holds the response body, nil until the confirmation was read
	Result []byte
}

// NewInvoke creates a method invocation
func NewInvoke(providerHandle, serviceHandle, methodHandle uint16, args []byte) *Invoke {
	return &Invoke{
		ProviderHandle: providerHandle,
		ServiceHandle:  serviceHandle,
		MethodHandle:   methodHandle,
		Args:           args,
	}
}

func (c *Invoke) Name() string {
	return "invoke"
}

func (c *Invoke) BuildRequest(_ transport.IConnection, header *serializer.CommandHeader) ([]byte, error) {
	if c.ProviderHandle == 0 || c.ServiceHandle == 0 {
		return nil, common.NewEncodingError("invoke needs a provider and a service handle, got %d/%d", c.ProviderHandle, c.ServiceHandle)
	}
	header.CommandType = common.CmdTInvokeRequest
	header.ServiceProviderHandle = c.ProviderHandle
	header.ServiceHandle = c.ServiceHandle
	header.MethodHandle = c.MethodHandle
	header.DataLength = len(c.Args)
	return c.Args, nil
}

func (c *Invoke) ParseResponse(conn transport.IConnection) error {
	ok, header, err := readResponseHeader(conn, common.CmdTInvokeConfirmation)
	if err != nil {
		return err
	}
	if !ok {
		return readException(conn, header)
	}

	result, err := conn.Receive(header.DataLength)
	if err != nil {
		return err
	}
	if err := conn.ConsumeConfirmation(); err != nil {
		return err
	}

	c.Result = result
	return nil
}

package server

import (
	"fmt"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/serializer"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
)

// Error codes sent in exception frames
const (
	CodeNotConnected    uint32 = 0x0000_0101
	CodeUnknownProvider uint32 = 0x0000_0102
	CodeUnknownMethod   uint32 = 0x0000_0103
	CodeMethodFailed    uint32 = 0x0000_0104

	// communication layer codes, sent without a message
	CodeUnsupportedCommand = common.CommunicationLayerMask | 0x0001
	CodeMalformedRequest   = common.CommunicationLayerMask | 0x0002
)

// NewRSCServerAdapter creates the adapter answering the RSC commands
func NewRSCServerAdapter(config common.ServerConfig) IRSCServerAdapter {
	return &rscServerAdapter{config: config}
}

type rscServerAdapter struct {
	config common.ServerConfig
}

// Handle processes one request and returns a response (docu see IRSCServerAdapter)
func (a *rscServerAdapter) Handle(state *transport.ServerConnState, req serializer.Frame, registry *Registry) serializer.Frame {
	metrics.GetOrCreateCounter(fmt.Sprintf(`drsc_server_requests_total{command=%q}`, req.Header.CommandType)).Inc()

	header := req.Header
	if header.CommandType != common.CmdTConnectRequest && !state.Connected {
		return a.exception(state, header, &common.ServerException{Code: CodeNotConnected, Message: "no session, send a connect request first"})
	}

	switch header.CommandType {

	case common.CmdTConnectRequest:
		state.Capabilities = common.Capabilities{
			RemotingVersion: a.config.RemotingVersion,
			HasDataTagging:  header.HasDataTagging && a.config.DataTagging,
			HasDatagramming: header.HasDatagramming && a.config.Datagramming,
		}
		state.Connected = true
		Logger.Infof("Session of %s established (%s)", state.RemoteAddr, state.Capabilities)
		return a.confirm(state, header, nil)

	case common.CmdTDisconnectRequest:
		// the capabilities stay, the response and a following connect still use them
		state.Connected = false
		Logger.Infof("Session of %s closed", state.RemoteAddr)
		return a.confirm(state, header, nil)

	case common.CmdTGetServiceProviderRequest:
		name, err := serializer.DecodeProviderRequest(req.Body)
		if err != nil {
			return a.exception(state, header, &common.RemotingFatalError{Code: CodeMalformedRequest})
		}
		resp := a.confirm(state, header, nil)
		resp.Header.ServiceHandle = registry.ProviderHandle(name)
		Logger.Debugf("Provider %q resolved to %d", name, resp.Header.ServiceHandle)
		return resp

	case common.CmdTGetServiceExtRequest:
		providerHandle, name, err := serializer.DecodeServiceRequest(req.Body)
		if err != nil {
			return a.exception(state, header, &common.RemotingFatalError{Code: CodeMalformedRequest})
		}
		current, serviceHandle, err := registry.ServiceHandle(providerHandle, name)
		if err != nil {
			return a.exception(state, header, &common.ServerException{Code: CodeUnknownProvider, Message: err.Error()})
		}
		resp := a.confirm(state, header, nil)
		resp.Header.ServiceProviderHandle = current
		resp.Header.ServiceHandle = serviceHandle
		return resp

	case common.CmdTInvokeRequest:
		fn, err := registry.Method(header.ServiceProviderHandle, header.ServiceHandle, header.MethodHandle)
		if err != nil {
			return a.exception(state, header, &common.ServerException{Code: CodeUnknownMethod, Message: err.Error()})
		}
		result, err := fn(req.Body)
		if err != nil {
			return a.exception(state, header, err)
		}
		resp := a.confirm(state, header, result)
		resp.Header.ServiceProviderHandle = header.ServiceProviderHandle
		resp.Header.ServiceHandle = header.ServiceHandle
		resp.Header.MethodHandle = header.MethodHandle
		return resp

	default:
		return a.exception(state, header, &common.RemotingFatalError{Code: CodeUnsupportedCommand})
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// responseHeader creates a header carrying the capabilities of the connection
func (a *rscServerAdapter) responseHeader(state *transport.ServerConnState, cmdType common.CommandType) serializer.CommandHeader {
	caps := state.Capabilities
	if caps.RemotingVersion == 0 {
		caps.RemotingVersion = a.config.RemotingVersion
	}
	header := *serializer.NewCommandHeader(caps)
	header.CommandType = cmdType
	return header
}

// confirm answers req with its confirmation type
func (a *rscServerAdapter) confirm(state *transport.ServerConnState, req serializer.CommandHeader, body []byte) serializer.Frame {
	return serializer.NewFrame(a.responseHeader(state, req.CommandType.Confirmation()), body)
}

// exception answers req with an exception frame carrying err
func (a *rscServerAdapter) exception(state *transport.ServerConnState, req serializer.CommandHeader, err error) serializer.Frame {
	Logger.Warningf("Answering %s from %s with exception: %v", req.CommandType, state.RemoteAddr, err)

	body, encErr := serializer.EncodeError(err, CodeMethodFailed)
	if encErr != nil {
		Logger.Errorf("Failed to encode exception: %v", encErr)
		body, _ = serializer.EncodeException(CodeMethodFailed, "", nil)
	}

	code := CodeMethodFailed
	var se *common.ServerException
	var fatal *common.RemotingFatalError
	switch {
	case errors.As(err, &se):
		code = se.Code
	case errors.As(err, &fatal):
		code = fatal.Code
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`drsc_server_exceptions_total{code="0x%08x"}`, code)).Inc()

	return serializer.NewFrame(a.responseHeader(state, common.CmdTException), body)
}

package server

import (
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/serializer"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerServer)

// NewDeviceServer creates a simulated RSC device.
// It takes a config and a transport as parameters, the providers and
// services of the config are registered right away.
//
// Usage:
//
//	s, err := server.NewDeviceServer(
//		config,
//		tcp.NewTCPDefaultServerTransport(),
//	)
//	if err != nil {
//		panic(err)
//	}
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewDeviceServer(config common.ServerConfig, transport transport.IRPCServerTransport) (*DeviceServer, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if config.RemotingVersion == 0 {
		config.RemotingVersion = common.RemotingVersionRecent
	}

	registry := NewRegistry()
	for provider, services := range config.Providers {
		if _, err := registry.AddProvider(provider); err != nil {
			return nil, err
		}
		for _, service := range services {
			if _, err := registry.AddService(provider, service); err != nil {
				return nil, err
			}
		}
	}

	Logger.Infof("Created device simulator")
	Logger.Infof(config.String())

	return &DeviceServer{
		config:    config,
		transport: transport,
		adapter:   NewRSCServerAdapter(config),
		registry:  registry,
	}, nil
}

// DeviceServer answers RSC commands from a registry of providers and services
type DeviceServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	adapter   IRSCServerAdapter
	registry  *Registry
}

// Registry returns the registry the server resolves names against.
// It may be changed while the server is running.
func (s *DeviceServer) Registry() *Registry {
	return s.registry
}

// MoveProvider assigns a new handle to a provider, see Registry.MoveProvider
func (s *DeviceServer) MoveProvider(name string) (uint16, error) {
	handle, err := s.registry.MoveProvider(name)
	if err != nil {
		return 0, err
	}
	Logger.Infof("Moved provider %s to handle %d", name, handle)
	return handle, nil
}

// Start binds the listener and serves connections in the background
func (s *DeviceServer) Start() error {
	if err := s.listen(); err != nil {
		return err
	}
	go func() {
		if err := s.transport.Serve(); err != nil {
			Logger.Errorf("Device simulator stopped: %v", err)
		}
	}()
	return nil
}

// Serve binds the listener and serves connections until Close is called
func (s *DeviceServer) Serve() error {
	if err := s.listen(); err != nil {
		return err
	}
	return s.transport.Serve()
}

// Addr returns the address the server listens on
func (s *DeviceServer) Addr() string {
	return s.transport.Addr()
}

// Close stops the server and closes all connections
func (s *DeviceServer) Close() error {
	return s.transport.Close()
}

func (s *DeviceServer) listen() error {
	s.transport.RegisterHandler(func(state *transport.ServerConnState, req serializer.Frame) serializer.Frame {
		return s.adapter.Handle(state, req, s.registry)
	})
	if err := s.transport.Listen(s.config); err != nil {
		return errors.Wrapf(err, "listen on %s", s.config.Endpoint)
	}
	return nil
}

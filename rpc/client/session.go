package client

import (
	"sync"
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// IStream is a connection that can also open and close its byte stream.
// base.Connection implements it.
type IStream interface {
	transport.IConnection

	// Connect opens the stream to address
	Connect(address string) error
	// Disconnect closes the stream, closing a closed stream is a no-op
	Disconnect() error
}

// serviceKey identifies a cached service handle
type serviceKey struct {
	provider string
	service  string
}

// Session is a client for a single device. It serializes all exchanges on
// its connection, caches resolved handles and keeps the channel alive.
// A Session is safe for concurrent use and cannot be reused after Close.
type Session struct {
	config     common.ClientConfig
	conn       IStream
	dispatcher *Dispatcher

	// providers maps provider names to provider handles
	providers *xsync.MapOf[string, uint16]
	// services maps provider and service name to service handles
	services *xsync.MapOf[serviceKey, uint16]

	// mu serializes exchanges and guards the fields below
	mu           sync.Mutex
	lastExchange time.Time
	disposed     bool

	keepAliveStop chan struct{}
	keepAliveDone chan struct{}
}

// NewSession creates a session for the device at config.Endpoint.
// No I/O happens before Connect is called.
func NewSession(config common.ClientConfig, conn IStream) *Session {
	return &Session{
		config:     config,
		conn:       conn,
		dispatcher: NewDispatcher(),
		providers:  xsync.NewMapOf[string, uint16](),
		services:   xsync.NewMapOf[serviceKey, uint16](),
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Connect opens the stream, negotiates the capabilities and starts the keep-alive
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return errors.Wrap(common.ErrInvalidOperation, "session already closed, create a new one")
	}
	if s.conn.IsConnected() {
		return errors.Wrap(common.ErrInvalidOperation, "already connected")
	}

	if err := s.conn.Connect(s.config.Endpoint); err != nil {
		return err
	}

	cmd := NewConnect(s.config.RequestDataTagging, s.config.RequestDatagramming)
	if err := s.executeLocked(cmd); err != nil {
		_ = s.conn.Disconnect()
		return err
	}
	clientLogger.Infof("Session to %s established (%s)", s.config.Endpoint, cmd.Negotiated)

	if s.config.KeepAliveMs > 0 {
		s.keepAliveStop = make(chan struct{})
		s.keepAliveDone = make(chan struct{})
		go s.keepAlive(time.Duration(s.config.KeepAliveMs)*time.Millisecond, s.keepAliveStop, s.keepAliveDone)
	}
	return nil
}

// Close stops the keep-alive, ends the session on the device and closes the stream.
// Closing a closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	stop, done := s.keepAliveStop, s.keepAliveDone
	s.keepAliveStop, s.keepAliveDone = nil, nil
	s.mu.Unlock()

	// the keep-alive takes the lock itself, so it is stopped without holding it
	if stop != nil {
		close(stop)
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil
	}
	s.disposed = true

	if !s.conn.IsConnected() {
		return nil
	}

	var err error
	if cmdErr := s.executeLocked(NewDisconnect()); cmdErr != nil {
		clientLogger.Warningf("Disconnect from %s failed: %v", s.config.Endpoint, cmdErr)
		err = cmdErr
	}

	s.providers.Clear()
	s.services.Clear()

	return errors.CombineErrors(err, s.conn.Disconnect())
}

// Capabilities returns the capabilities negotiated by Connect
func (s *Session) Capabilities() common.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Capabilities()
}

// --------------------------------------------------------------------------
// Handle Resolution
// --------------------------------------------------------------------------

// ProviderHandle resolves a provider name, results are cached
func (s *Session) ProviderHandle(provider string) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providerHandleLocked(provider)
}

func (s *Session) providerHandleLocked(provider string) (uint16, error) {
	if handle, ok := s.providers.Load(provider); ok {
		return handle, nil
	}

	cmd := NewGetServiceProviderHandle(provider).SetStrict(s.config.StrictLookup)
	if err := s.executeLocked(cmd); err != nil {
		return 0, err
	}
	if cmd.ProviderHandle == 0 {
		return 0, errors.Wrapf(common.ErrServiceNotFound, "unknown service provider %q", provider)
	}

	s.providers.Store(provider, cmd.ProviderHandle)
	return cmd.ProviderHandle, nil
}

// ServiceHandle resolves the first of the candidate service names the provider offers.
// Results are cached per provider and service name.
func (s *Session) ServiceHandle(provider string, names ...string) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serviceHandleLocked(provider, names...)
}

func (s *Session) serviceHandleLocked(provider string, names ...string) (uint16, error) {
	for _, name := range names {
		if handle, ok := s.services.Load(serviceKey{provider, name}); ok {
			return handle, nil
		}
	}

	for _, name := range names {
		handle, err := s.lookupService(provider, name)
		if err != nil {
			return 0, err
		}
		if handle != 0 {
			s.services.Store(serviceKey{provider, name}, handle)
			return handle, nil
		}
	}

	return 0, errors.Wrapf(common.ErrServiceNotFound, "unknown service %v (provider: %s)", names, provider)
}

// lookupService asks the device for a service handle. When the device moved
// the provider, the cached provider handle is replaced and the lookup repeated
// once with the new handle.
func (s *Session) lookupService(provider, name string) (uint16, error) {
	for attempt := 0; ; attempt++ {
		providerHandle, err := s.providerHandleLocked(provider)
		if err != nil {
			return 0, err
		}

		cmd := NewGetServiceExtRequest(providerHandle, name)
		if err := s.executeLocked(cmd); err != nil {
			return 0, err
		}
		if !cmd.ProviderHandleChanged() {
			return cmd.ServiceHandle, nil
		}

		clientLogger.Infof("Provider %s moved from handle %d to %d", provider, providerHandle, cmd.ConfirmedProviderHandle)
		s.dropProvider(provider)
		s.providers.Store(provider, cmd.ConfirmedProviderHandle)

		// an unknown service is unknown at the new handle as well
		if cmd.ServiceHandle == 0 || attempt > 0 {
			return cmd.ServiceHandle, nil
		}
	}
}

// dropProvider forgets the provider handle and all service handles resolved through it
func (s *Session) dropProvider(provider string) {
	s.providers.Delete(provider)
	s.services.Range(func(key serviceKey, _ uint16) bool {
		if key.provider == provider {
			s.services.Delete(key)
		}
		return true
	})
}

// --------------------------------------------------------------------------
// Invocation
// --------------------------------------------------------------------------

// Invoke resolves provider and service and calls the method with args.
// The response body is returned unchanged.
func (s *Session) Invoke(provider, service string, method uint16, args []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceHandle, err := s.serviceHandleLocked(provider, service)
	if err != nil {
		return nil, err
	}
	providerHandle, err := s.providerHandleLocked(provider)
	if err != nil {
		return nil, err
	}

	cmd := NewInvoke(providerHandle, serviceHandle, method, args)
	if err := s.executeLocked(cmd); err != nil {
		return nil, err
	}
	return cmd.Result, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// executeLocked runs cmd, the caller holds s.mu
func (s *Session) executeLocked(cmd ICommand) error {
	err := s.dispatcher.Execute(cmd, s.conn, s.config.Timeout())
	s.lastExchange = time.Now()
	return err
}

// keepAlive renews the channel whenever no exchange happened for interval
func (s *Session) keepAlive(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	clientLogger.Debugf("Starting keep-alive with a period of %s", interval)

	wait := interval
	for {
		select {
		case <-stop:
			clientLogger.Debugf("Keep-alive stopped")
			return
		case <-time.After(wait):
		}

		wait = s.renewChannel(interval)
	}
}

// renewChannel sends a lightweight exchange if the channel was idle for
// interval and returns the time to wait before the next check
func (s *Session) renewChannel(interval time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.conn.IsConnected() {
		return interval
	}

	if idle := time.Since(s.lastExchange); idle < interval {
		return interval - idle
	}

	clientLogger.Debugf("Renewing channel to %s", s.config.Endpoint)
	cmd := NewGetServiceProviderHandle(s.config.KeepAliveProvider).SetStrict(false)
	if err := s.executeLocked(cmd); err != nil {
		clientLogger.Warningf("Keep-alive to %s failed: %v", s.config.Endpoint, err)
	}
	return interval
}

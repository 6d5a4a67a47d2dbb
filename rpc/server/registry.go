package server

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// MethodFunc implements a single method of a simulated service.
// A returned *common.ServerException is sent to the client as is, any other
// error is sent with CodeMethodFailed.
type MethodFunc func(args []byte) ([]byte, error)

// EchoMethod is registered for every service and returns its arguments
const EchoMethod uint16 = 1

// Echo returns args unchanged
func Echo(args []byte) ([]byte, error) {
	return args, nil
}

// serviceEntry is a service offered by a provider
type serviceEntry struct {
	handle  uint16
	methods *xsync.MapOf[uint16, MethodFunc]
}

// providerEntry is a service provider, its handle changes when it is moved
type providerEntry struct {
	name   string
	handle atomic.Uint32

	services       *xsync.MapOf[string, *serviceEntry]
	servicesHandle *xsync.MapOf[uint16, *serviceEntry]
	nextService    atomic.Uint32
}

func (p *providerEntry) currentHandle() uint16 {
	return uint16(p.handle.Load())
}

// Registry resolves provider and service names of the simulated device.
// Lookups are lock free, only handle allocation is serialized.
type Registry struct {
	// providers by name
	providers *xsync.MapOf[string, *providerEntry]
	// providers by every handle they ever had
	providersHandle *xsync.MapOf[uint16, *providerEntry]

	mu           sync.Mutex
	nextProvider uint16
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		providers:       xsync.NewMapOf[string, *providerEntry](),
		providersHandle: xsync.NewMapOf[uint16, *providerEntry](),
	}
}

// allocateProviderHandle returns the next unused provider handle.
// Handles are sent as int16 in service requests, so they stay below MaxInt16.
func (r *Registry) allocateProviderHandle() (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextProvider >= math.MaxInt16 {
		return 0, errors.Wrap(common.ErrInvalidOperation, "provider handles exhausted")
	}
	r.nextProvider++
	return r.nextProvider, nil
}

// AddProvider registers a provider and returns its handle.
// Adding a known provider returns its current handle.
func (r *Registry) AddProvider(name string) (uint16, error) {
	if p, ok := r.providers.Load(name); ok {
		return p.currentHandle(), nil
	}

	handle, err := r.allocateProviderHandle()
	if err != nil {
		return 0, err
	}

	p := &providerEntry{
		name:           name,
		services:       xsync.NewMapOf[string, *serviceEntry](),
		servicesHandle: xsync.NewMapOf[uint16, *serviceEntry](),
	}
	p.handle.Store(uint32(handle))

	if existing, loaded := r.providers.LoadOrStore(name, p); loaded {
		return existing.currentHandle(), nil
	}
	r.providersHandle.Store(handle, p)
	return handle, nil
}

// AddService registers a service at a provider and returns the service handle.
// The provider is created if needed and every service offers EchoMethod.
func (r *Registry) AddService(provider, service string) (uint16, error) {
	if _, err := r.AddProvider(provider); err != nil {
		return 0, err
	}
	p, _ := r.providers.Load(provider)

	if s, ok := p.services.Load(service); ok {
		return s.handle, nil
	}

	next := p.nextService.Add(1)
	if next > math.MaxUint16 {
		return 0, errors.Wrapf(common.ErrInvalidOperation, "service handles of %s exhausted", provider)
	}

	s := &serviceEntry{
		handle:  uint16(next),
		methods: xsync.NewMapOf[uint16, MethodFunc](),
	}
	s.methods.Store(EchoMethod, Echo)

	if existing, loaded := p.services.LoadOrStore(service, s); loaded {
		return existing.handle, nil
	}
	p.servicesHandle.Store(s.handle, s)
	return s.handle, nil
}

// RegisterMethod installs fn as method of a registered service
func (r *Registry) RegisterMethod(provider, service string, method uint16, fn MethodFunc) error {
	p, ok := r.providers.Load(provider)
	if !ok {
		return errors.Wrapf(common.ErrServiceNotFound, "unknown service provider %q", provider)
	}
	s, ok := p.services.Load(service)
	if !ok {
		return errors.Wrapf(common.ErrServiceNotFound, "unknown service %q (provider: %s)", service, provider)
	}
	s.methods.Store(method, fn)
	return nil
}

// MoveProvider assigns a new handle to a provider. The old handle keeps
// resolving to the provider so clients learn the new one from their next
// service lookup.
func (r *Registry) MoveProvider(name string) (uint16, error) {
	p, ok := r.providers.Load(name)
	if !ok {
		return 0, errors.Wrapf(common.ErrServiceNotFound, "unknown service provider %q", name)
	}

	handle, err := r.allocateProviderHandle()
	if err != nil {
		return 0, err
	}
	p.handle.Store(uint32(handle))
	r.providersHandle.Store(handle, p)
	return handle, nil
}

// ProviderHandle returns the current handle of a provider, 0 if unknown
func (r *Registry) ProviderHandle(name string) uint16 {
	p, ok := r.providers.Load(name)
	if !ok {
		return 0
	}
	return p.currentHandle()
}

// ServiceHandle resolves a service of the provider with the given (possibly
// outdated) handle. It returns the provider's current handle and the service
// handle, which is 0 for an unknown service.
func (r *Registry) ServiceHandle(providerHandle uint16, service string) (uint16, uint16, error) {
	p, ok := r.providersHandle.Load(providerHandle)
	if !ok {
		return 0, 0, errors.Wrapf(common.ErrServiceNotFound, "unknown service provider handle %d", providerHandle)
	}
	s, ok := p.services.Load(service)
	if !ok {
		return p.currentHandle(), 0, nil
	}
	return p.currentHandle(), s.handle, nil
}

// Method resolves the implementation of a method
func (r *Registry) Method(providerHandle, serviceHandle, method uint16) (MethodFunc, error) {
	p, ok := r.providersHandle.Load(providerHandle)
	if !ok {
		return nil, errors.Wrapf(common.ErrServiceNotFound, "unknown service provider handle %d", providerHandle)
	}
	s, ok := p.servicesHandle.Load(serviceHandle)
	if !ok {
		return nil, errors.Wrapf(common.ErrServiceNotFound, "unknown service handle %d (provider: %s)", serviceHandle, p.name)
	}
	fn, ok := s.methods.Load(method)
	if !ok {
		return nil, errors.Wrapf(common.ErrServiceNotFound, "unknown method %d (provider: %s)", method, p.name)
	}
	return fn, nil
}

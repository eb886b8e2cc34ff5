package webcrypto

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/webcrypto", "webcrypto")

// ProviderLoader is interface for loading a provider from its configuration.
type ProviderLoader func(cfg ProviderConfig) (Provider, error)

var (
	lockLoaders sync.RWMutex
	loaders     = make(map[string]ProviderLoader)
)

// Register provider loader by name
func Register(name string, loader ProviderLoader) error {
	lockLoaders.Lock()
	defer lockLoaders.Unlock()

	if _, ok := loaders[name]; ok {
		return errors.Errorf("already registered: %s", name)
	}

	loaders[name] = loader

	return nil
}

// Unregister provider loader by name
func Unregister(name string) (ProviderLoader, error) {
	lockLoaders.Lock()
	defer lockLoaders.Unlock()

	if loader, ok := loaders[name]; ok {
		delete(loaders, name)
		return loader, nil
	}

	return nil, errors.Errorf("not registered: %s", name)
}

// Registered returns registered provider loaders
func Registered() []string {
	lockLoaders.Lock()
	defer lockLoaders.Unlock()

	list := []string{}
	for m := range loaders {
		list = append(list, m)
	}
	return list
}

// registryEntry binds one (operation, algorithm) pair to its provider and
// the full capability the provider declared for the algorithm.
type registryEntry struct {
	provider Provider
	cap      AlgorithmCapability
}

// Registry maps (operation, algorithm) pairs to provider capabilities. It
// is populated once at construction and read-only thereafter, so concurrent
// lookups need no synchronization.
type Registry struct {
	entries map[OperationName]map[string]registryEntry
}

// NewRegistry builds a registry from the given providers. Registering the
// same (operation, algorithm) pair twice is an error.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{
		entries: make(map[OperationName]map[string]registryEntry),
	}
	for _, p := range providers {
		for _, ac := range p.Algorithms() {
			name := canonicalAlgName(ac.Algorithm)
			if name == "" {
				return nil, errors.Errorf("provider %q declares an algorithm without a name", p.Name())
			}
			for _, op := range ac.Operations {
				if !recognizedOperations[op] {
					return nil, errors.Errorf("provider %q declares unknown operation %q for %q",
						p.Name(), op, ac.Algorithm)
				}
				byAlg := r.entries[op]
				if byAlg == nil {
					byAlg = make(map[string]registryEntry)
					r.entries[op] = byAlg
				}
				if prev, ok := byAlg[name]; ok {
					return nil, errors.Errorf("operation %q for algorithm %q already registered by provider %q",
						op, ac.Algorithm, prev.provider.Name())
				}
				byAlg[name] = registryEntry{provider: p, cap: ac}
			}
			logger.KV(xlog.DEBUG, "provider", p.Name(), "algorithm", ac.Algorithm, "operations", len(ac.Operations))
		}
	}
	return r, nil
}

// Normalize resolves a descriptor into canonical parameters for the
// operation. It fails with ErrUnsupportedAlgorithm when no provider is
// registered for the (operation, algorithm) pair; otherwise it delegates to
// the provider's own normalization on an independent copy of the descriptor.
func (r *Registry) Normalize(op OperationName, alg Algorithm) (NormalizedAlgorithm, error) {
	params, _, err := r.resolve(op, alg)
	return params, err
}

func (r *Registry) resolve(op OperationName, alg Algorithm) (NormalizedAlgorithm, Provider, error) {
	e, ok := r.lookup(op, alg.Name)
	if !ok {
		return NormalizedAlgorithm{}, nil, unsupportedAlgorithm(alg.Name)
	}
	cp, err := alg.clone()
	if err != nil {
		return NormalizedAlgorithm{}, nil, err
	}
	params, err := e.provider.Normalize(op, cp)
	if err != nil {
		return NormalizedAlgorithm{}, nil, err
	}
	return params, e.provider, nil
}

func (r *Registry) lookup(op OperationName, algName string) (registryEntry, bool) {
	e, ok := r.entries[op][canonicalAlgName(algName)]
	return e, ok
}

// Capability returns the provider and capability registered for the
// (operation, algorithm) pair.
func (r *Registry) Capability(op OperationName, algName string) (Provider, AlgorithmCapability, bool) {
	e, ok := r.lookup(op, algName)
	if !ok {
		return nil, AlgorithmCapability{}, false
	}
	return e.provider, e.cap, true
}

// SupportedAlgorithms returns the algorithm names registered for the
// operation.
func (r *Registry) SupportedAlgorithms(op OperationName) []string {
	list := make([]string, 0, len(r.entries[op]))
	for name := range r.entries[op] {
		list = append(list, name)
	}
	return list
}

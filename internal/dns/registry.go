package dns

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"
)

var (
	// ErrUnknownProvider is returned by NewProvider for an unregistered type.
	ErrUnknownProvider = errors.New("unsupported DNS provider")
	// ErrInvalidSetting is returned by factories for missing or malformed settings.
	ErrInvalidSetting = errors.New("invalid provider setting")
)

// Factory is a constructor function that providers register to create themselves.
// It builds a Provider for one domain from the provider-specific settings.
type Factory func(ctx context.Context, log logr.Logger, domain string, settings map[string]string) (Provider, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by provider packages in their init() to self-register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("dns: provider %q already registered", name))
	}
	factories[name] = f
}

// Registered returns the sorted names of all registered providers.
func Registered() []string {
	mu.Lock()
	defer mu.Unlock()
	return registeredLocked()
}

func registeredLocked() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProvider looks up the named provider in the registry and creates it for domain.
func NewProvider(ctx context.Context, name string, log logr.Logger, domain string, settings map[string]string) (Provider, error) {
	mu.Lock()
	f, ok := factories[name]
	names := registeredLocked()
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownProvider, name, names)
	}
	return f(ctx, log, domain, settings)
}

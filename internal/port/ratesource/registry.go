package ratesource

import (
	"fmt"
	"sync"
)

// Factory is a constructor function that creates a Client from provider
// configuration.
type Factory func(cfg Config) (Client, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a client factory available under a provider code.
// It is typically called from an init() function in the adapter package.
func Register(code string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[code]; exists {
		panic(fmt.Sprintf("ratesource: duplicate registration for %q", code))
	}
	factories[code] = factory
}

// New creates a Client for the given provider code.
func New(code string, cfg Config) (Client, error) {
	mu.RLock()
	factory, ok := factories[code]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("ratesource: unknown provider code %q", code)
	}
	return factory(cfg)
}

// Available returns the registered provider codes.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	codes := make([]string, 0, len(factories))
	for code := range factories {
		codes = append(codes, code)
	}
	return codes
}

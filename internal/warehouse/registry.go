package warehouse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory opens a backend.
type Factory func(ctx context.Context, cfg Config) (Warehouse, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It is called from backend
// init() functions; registering the same kind twice replaces the factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backends, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UnknownKindError is returned by New for an unregistered kind.
type UnknownKindError struct {
	Kind      string
	Available []string
}

func (e *UnknownKindError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown warehouse kind %q (no backends registered)", e.Kind)
	}
	return fmt.Sprintf("unknown warehouse kind %q (available: %s)", e.Kind, strings.Join(e.Available, ", "))
}

// New opens the backend registered under cfg.Kind.
func New(ctx context.Context, cfg Config) (Warehouse, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, &UnknownKindError{Kind: cfg.Kind, Available: Kinds()}
	}
	wh, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", cfg.Kind, err)
	}
	return wh, nil
}

package module

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// RunOptions carries per-run settings into a module.
type RunOptions struct {
	// CheckMode requests a dry run: the module performs no mutating
	// remote call and instead reports the mutation it would perform.
	CheckMode bool

	// Logger receives structured progress output. Nil falls back to
	// slog.Default().
	Logger *slog.Logger
}

// Log returns the configured logger or the process default.
func (o RunOptions) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Module is one configuration-management task against a Pi-hole instance.
// Implementations validate their parameters at construction time, before
// any network call, so an invalid operation selector or missing required
// field never reaches the appliance.
//
// Run reports its outcome entirely through the Result envelope: remote
// failures surface as Success=false with the diagnostic in Error, never
// as a panic or a separate error value.
type Module interface {
	// Name returns the module name, e.g. "blocking".
	Name() string

	// Run executes the task against the given client.
	Run(ctx context.Context, client *pihole.Client, opts RunOptions) *Result
}

// Factory builds a module from its raw playbook parameters. A nil node
// means the task supplied no parameters.
type Factory func(params *yaml.Node) (Module, error)

// Registry maps module names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a module factory under the given name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds a module instance from raw parameters.
func (r *Registry) Create(name string, params *yaml.Node) (Module, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown module: %s", name)
	}

	m, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}
	return m, nil
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeParams decodes a raw parameter node into a typed params struct.
// A nil node leaves the struct at its zero value.
func DecodeParams(params *yaml.Node, out any) error {
	if params == nil {
		return nil
	}
	if err := params.Decode(out); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}

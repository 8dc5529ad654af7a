package sim

import (
	"sync"

	"github.com/ks888/fetctl/probe"
)

// PortName is the port name the CLI accepts for the simulated probe.
const PortName = "sim"

// Transport opens the simulated probes. Each Open creates the new target with the same config.
type Transport struct {
	Config Config

	mu      sync.Mutex
	targets map[string]*Target
	opens   int
}

// NewTransport returns the transport of the simulated probes.
func NewTransport(config Config) *Transport {
	return &Transport{Config: config, targets: make(map[string]*Target)}
}

// Open implements probe.Transport.
func (t *Transport) Open(path string) (probe.Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := NewTarget(t.Config)
	t.targets[path] = target
	t.opens++
	return target, nil
}

// Interfaces implements probe.Enumerator. The simulated probe is always available.
func (t *Transport) Interfaces() ([]probe.Interface, error) {
	return []probe.Interface{{Name: PortName, Enabled: true}}, nil
}

// Target returns the target opened last for the path.
func (t *Transport) Target(path string) *Target {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.targets[path]
}

// Opens returns the number of the links opened so far.
func (t *Transport) Opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

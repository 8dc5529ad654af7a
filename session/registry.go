package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ks888/fetctl/probe"
)

type registryEntry struct {
	session *Session
	refs    int
}

// Registry owns the open sessions, one per probe path. Opening the same path again returns the
// existing session, because the probe supports only one conversation per physical link.
type Registry struct {
	notifier Notifier

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry returns the empty registry. The events of the sessions are passed to the notifier, which can be nil.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{notifier: notifier, entries: make(map[string]*registryEntry)}
}

// Open returns the session of the path. The link is opened through the transport only if the path has no session.
// Each Open must be paired with Release.
func (r *Registry) Open(path string, transport probe.Transport) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[path]; ok && !entry.session.Closed() {
		entry.refs++
		return entry.session, nil
	}

	link, err := transport.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	session := newSession(path, link, r.notifier)
	r.entries[path] = &registryEntry{session: session, refs: 1}
	return session, nil
}

// Release decrements the reference count of the session and closes it when the count reaches 0.
func (r *Registry) Release(path string) error {
	r.mu.Lock()
	entry, ok := r.entries[path]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("no session for %s", path)
	}
	entry.refs--
	if entry.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.entries, path)
	r.mu.Unlock()

	return entry.session.Close()
}

// Paths returns the paths of the open sessions in the sorted order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var paths []string
	for path := range r.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// CloseAll closes all the sessions regardless of their reference counts.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	var firstErr error
	for _, entry := range entries {
		if err := entry.session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

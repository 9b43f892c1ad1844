package host

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry hands out one Session per host so that every client talking to
// the same destination shares its master connection and lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     []Option
}

// NewRegistry creates an empty registry. opts apply to every new Session.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// Key identifies the destination of a descriptor.
func Key(d Descriptor) string {
	k := d.Host
	if d.User != "" {
		k = d.User + "@" + k
	}
	if d.Port > 0 {
		k = fmt.Sprintf("%s:%d", k, d.Port)
	}
	return k
}

// Session returns the Session for d, creating it on first use. A descriptor
// that fails sanitization is rejected and nothing is stored.
func (r *Registry) Session(d Descriptor) (*Session, error) {
	d, err := Sanitize(d)
	if err != nil {
		return nil, err
	}
	key := Key(d)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		return s, nil
	}
	s, err := NewSession(d, r.opts...)
	if err != nil {
		return nil, err
	}
	r.sessions[key] = s
	return s, nil
}

// Forget drops the session for key without disconnecting it.
func (r *Registry) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// DisconnectAll tears down every master connection and empties the registry.
// It returns the first error after trying all sessions.
func (r *Registry) DisconnectAll(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for key, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	var first error
	for _, s := range sessions {
		if err := s.Disconnect(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Size returns the number of sessions.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Keys returns the registered destinations, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// GlobalRegistry returns the process-wide registry.
func GlobalRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Package server tracks which connection holds which identity. The registry
// is the authority consulted before every content or presence event.
package server

import (
	"errors"
	"net"
	"strings"
	"sync"
)

// ErrDuplicateRegistration indicates a connection id that is already bound to
// an identity. The lifecycle guarantees at most one join per connection, so
// hitting this is a logic error rather than a user-facing condition.
var ErrDuplicateRegistration = errors.New("connection id already registered")

// Registry maps connection ids to identity strings. Iteration order for the
// user-list snapshot is join order, so insertion order is tracked alongside
// the map.
type Registry struct {
	mu         sync.RWMutex
	identities map[string]string
	order      []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[string]string),
	}
}

// Register binds an identity to the connection id and returns it. The
// identity is the display string "username (address)" and never changes for
// the lifetime of the connection. Identities are not deduplicated; two
// connections may legitimately produce the same string.
func (r *Registry) Register(id, username, addr string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[id]; exists {
		return "", ErrDuplicateRegistration
	}

	identity := username + " (" + addr + ")"
	r.identities[id] = identity
	r.order = append(r.order, id)
	return identity, nil
}

// Lookup returns the identity bound to the connection id, if any.
func (r *Registry) Lookup(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identities[id]
	return identity, ok
}

// Unregister removes the binding and returns the prior identity so the
// caller can announce the departure. A connection that never completed a join
// yields ok == false and no announcement.
func (r *Registry) Unregister(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok {
		return "", false
	}

	delete(r.identities, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return identity, true
}

// Count returns the number of joined connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.identities)
}

// Identities returns the current identities in join order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.identities[id])
	}
	return out
}

// NormalizeAddr reduces a remote address to the host form used in identity
// strings: the port is dropped and the IPv4-mapped-IPv6 prefix is stripped,
// so "[::ffff:10.0.0.5]:52110" becomes "10.0.0.5".
func NormalizeAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return strings.TrimPrefix(host, "::ffff:")
}

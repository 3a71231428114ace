// Package protocol maps incoming application-protocol ids to the handler
// that owns them (spec.md §4.6), grounded on
// original_source/libp2p/include/libp2p/net/protocol.h's handler table.
package protocol

import (
	"strings"
	"sync"
)

// Result is the tri-value a Handler returns after processing one message,
// mirroring the teacher's Notify/callback pattern (node/popn.go's
// nd.send(Notify{...})) generalized to a handler's own control flow
// instead of a single async notify channel.
type Result struct {
	// Stop, when true, tells the owning multistream channel this handler
	// is done with the stream (e.g. a one-shot request/response protocol).
	Stop bool
	// Err carries a handling failure; non-nil implies Stop.
	Err error
}

// Handler is one registered application protocol.
type Handler interface {
	// ID returns the protocol string this handler owns, e.g. "/ipfs/kad/1.0.0".
	ID() string
	// CanHandle reports whether id is a protocol this handler answers to.
	// The default match is an exact or prefix match against ID(); handlers
	// free to override with their own predicate still satisfy this method.
	CanHandle(id string) bool
	// Handle processes one message read from stream.
	Handle(msg []byte, stream Stream) Result
	// Shutdown releases any handler-held resources on node teardown.
	Shutdown()
}

// Stream is the minimal handler-facing view of a yamux stream: read/write
// the application payload, know which protocol negotiated it.
type Stream interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// Registry is an ordered list of handlers; dispatch picks the first match
// (spec.md §4.6: "Registry = ordered list; dispatch picks first match").
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a handler to the end of the dispatch order.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Match returns the first registered handler willing to handle id, used by
// the multistream acceptor's "handled" predicate.
func (r *Registry) Match(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if h.CanHandle(id) {
			return h, true
		}
	}
	return nil, false
}

// IDs returns the protocol id each registered handler advertises, in
// registration order — used by identify to answer "what do you speak".
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.handlers))
	for i, h := range r.handlers {
		out[i] = h.ID()
	}
	return out
}

// Shutdown calls Shutdown on every registered handler, in registration order.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		h.Shutdown()
	}
}

// PrefixMatch is the default CanHandle predicate most handlers embed:
// exact id match, or candidate as a sub-path of the handler's id.
func PrefixMatch(handlerID, candidate string) bool {
	return candidate == handlerID || strings.HasPrefix(candidate, handlerID+"/")
}

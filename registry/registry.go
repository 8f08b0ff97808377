// File: registry/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package registry maps wire type tags to the inbound sink of the type
// registered under them. A registry is filled during setup and frozen
// before the first tick; after that it is read-only and lock-free.
package registry

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/momentics/hioload-netevent/api"
)

// RoutingError reports a datagram that could not be handed to a consumer.
// Err is api.ErrUnregisteredTag for an unknown tag, or wraps
// api.ErrMalformedEnvelope when the payload did not decode as the
// registered type.
type RoutingError struct {
	Tag api.TypeTag
	Err error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("route tag %s: %v", e.Tag, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// Registry is the tag to sink table of one socket.
type Registry struct {
	sinks  map[api.TypeTag]api.Sink
	frozen atomic.Bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{sinks: make(map[api.TypeTag]api.Sink)}
}

// Register binds tag to sink. Each tag may be registered once.
func (r *Registry) Register(tag api.TypeTag, sink api.Sink) error {
	switch {
	case r.frozen.Load():
		return fmt.Errorf("register tag %s: %w", tag, api.ErrRegistryFrozen)
	case tag == 0:
		return fmt.Errorf("register tag %s: %w", tag, api.ErrInvalidTag)
	case sink == nil:
		return fmt.Errorf("register tag %s: %w: nil sink", tag, api.ErrInvalidArgument)
	}
	if _, ok := r.sinks[tag]; ok {
		return fmt.Errorf("register tag %s: %w", tag, api.ErrDuplicateTag)
	}
	r.sinks[tag] = sink
	return nil
}

// Freeze ends registration.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the sink for tag.
func (r *Registry) Lookup(tag api.TypeTag) (api.Sink, bool) {
	s, ok := r.sinks[tag]
	return s, ok
}

// Route hands payload to the sink registered under tag.
func (r *Registry) Route(tag api.TypeTag, payload []byte) error {
	sink, ok := r.sinks[tag]
	if !ok {
		return &RoutingError{Tag: tag, Err: api.ErrUnregisteredTag}
	}
	if err := sink.Deliver(payload); err != nil {
		return &RoutingError{Tag: tag, Err: err}
	}
	return nil
}

// Tags returns the registered tags in ascending order.
func (r *Registry) Tags() []api.TypeTag {
	tags := make([]api.TypeTag, 0, len(r.sinks))
	for t := range r.sinks {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Len returns the number of registered tags.
func (r *Registry) Len() int {
	return len(r.sinks)
}

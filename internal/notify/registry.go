// Package notify routes outbound notifications to channel adapters
// based on target prefix (e.g. "telegram:", "desktop:").
package notify

import (
	"fmt"
	"strings"
	"sync"
)

// Handler sends a message to a notification target.
type Handler func(target, message string) error

// Registry routes messages to the appropriate handler based on target
// prefix.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty notification registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Notify routes the message to the handler whose registered prefix is
// the longest match for target, so "telegram:urgent:" wins over
// "telegram:" when both are registered. Returns an error when no
// prefix matches. The handler runs outside the registry lock.
func (r *Registry) Notify(target, message string) error {
	r.mu.RLock()
	var best string
	var matched Handler
	for prefix, handler := range r.handlers {
		if !strings.HasPrefix(target, prefix) {
			continue
		}
		if matched == nil || len(prefix) > len(best) {
			best, matched = prefix, handler
		}
	}
	r.mu.RUnlock()
	if matched == nil {
		return fmt.Errorf("no notification handler for target: %s", target)
	}
	return matched(target, message)
}

package decoder

import "sync"

// Registry holds the decoder set for one decode node. It is owned by
// the node and passed explicitly; there is no package-level registry.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register adds d, replacing any decoder with the same name.
// Registration order is preserved for dispatch.
func (r *Registry) Register(d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[d.Name()]; !exists {
		r.order = append(r.order, d.Name())
	}
	r.decoders[d.Name()] = d
}

// Get returns the decoder registered under name.
func (r *Registry) Get(name string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[name]
	return d, ok
}

// All returns the decoders in registration order.
func (r *Registry) All() []Decoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Decoder, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.decoders[name])
	}
	return out
}

// Len reports the number of registered decoders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decoders)
}

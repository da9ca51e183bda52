package domain

import (
	"sort"
	"strings"
	"sync"

	"github.com/wippyai/faultdomain/errors"
)

// Registry maps domain names to handles.
type Registry struct {
	items map[string]Handle
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Handle)}
}

// Register adds a handle under its name.
func (r *Registry) Register(h Handle) error {
	if err := validate(h); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[h.name]; ok {
		return errors.New(errors.PhaseResolve, errors.KindInvalidInput).
			Domain(h.name, uint64(h.ID())).
			Detail("domain already registered").
			Build()
	}
	r.items[h.name] = h
	return nil
}

// Replace swaps the handle registered under h's name. The kind must match.
func (r *Registry) Replace(h Handle) error {
	if err := validate(h); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[h.name]
	if !ok {
		return errors.NotFound(errors.PhaseResolve, "domain", h.name)
	}
	if old.kind != h.kind {
		return errors.KindMismatch(errors.PhaseResolve, h.name, old.kind.String(), h.kind.String())
	}
	r.items[h.name] = h
	return nil
}

// Remove drops name from the registry.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[name]
	delete(r.items, name)
	return ok
}

// Resolve returns the handle registered under name.
func (r *Registry) Resolve(name string) (Handle, error) {
	r.mu.RLock()
	h, ok := r.items[name]
	r.mu.RUnlock()
	if !ok {
		return Handle{}, errors.NotFound(errors.PhaseResolve, "domain", name)
	}
	return h, nil
}

// ResolveBlk resolves name and checks that it is block capable.
func (r *Registry) ResolveBlk(name string) (BlkDevice, error) {
	h, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	d, ok := h.Blk()
	if !ok {
		return nil, errors.KindMismatch(errors.PhaseResolve, name, KindBlk.String(), h.kind.String())
	}
	return d, nil
}

// ResolveRtc resolves name and checks that it is an RTC.
func (r *Registry) ResolveRtc(name string) (Rtc, error) {
	h, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	d, ok := h.Rtc()
	if !ok {
		return nil, errors.KindMismatch(errors.PhaseResolve, name, KindRtc.String(), h.kind.String())
	}
	return d, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validate(h Handle) error {
	if h.IsZero() || h.kind == KindInvalid {
		return errors.InvalidInput(errors.PhaseResolve, "empty domain handle")
	}
	if strings.TrimSpace(h.name) == "" {
		return errors.InvalidInput(errors.PhaseResolve, "domain name is required")
	}
	return nil
}

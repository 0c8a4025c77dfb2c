package merchant

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound     = errors.New("merchant: not found")
	ErrInvalidInput = errors.New("merchant: invalid input")
)

// Info describes an approved payee loans may be directed to.
type Info struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is the admin-owned merchant lookup consulted at loan creation.
type Registry struct {
	mu        sync.RWMutex
	merchants map[string]*Info
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{merchants: make(map[string]*Info)}
}

// Upsert registers or updates a merchant. Idempotent: repeated calls with
// the same data are harmless.
func (r *Registry) Upsert(address, name, category string, active bool) (Info, error) {
	address = strings.TrimSpace(address)
	name = strings.TrimSpace(name)
	if address == "" || name == "" {
		return Info{}, ErrInvalidInput
	}
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[address]
	if !ok {
		m = &Info{Address: address, CreatedAt: now}
		r.merchants[address] = m
	}
	m.Name = name
	m.Category = strings.TrimSpace(category)
	m.Active = active
	m.UpdatedAt = now
	return *m, nil
}

// Get returns the merchant record or ErrNotFound.
func (r *Registry) Get(address string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[address]
	if !ok {
		return Info{}, ErrNotFound
	}
	return *m, nil
}

// IsActive reports whether the address is a known, active merchant.
func (r *Registry) IsActive(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[address]
	return ok && m.Active
}

// List returns all merchants, for the admin dashboard.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.merchants))
	for _, m := range r.merchants {
		out = append(out, *m)
	}
	return out
}

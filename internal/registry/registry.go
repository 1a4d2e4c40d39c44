package registry

import "github.com/rotisserie/eris"

// Registry maps (provider, dataset) pairs to their contracts. It is populated
// once at process start and read-only afterwards, so lookups need no locking.
type Registry struct {
	contracts map[string]*Contract
	order     []string // insertion order for deterministic iteration
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{contracts: make(map[string]*Contract)}
}

// Register adds a contract. Registering the same (provider, dataset) twice
// in one process lifetime fails with DuplicateRegistrationError.
func (r *Registry) Register(c *Contract) error {
	if err := c.validate(); err != nil {
		return err
	}
	key := c.Key()
	if _, ok := r.contracts[key]; ok {
		return &DuplicateRegistrationError{Provider: c.Provider, Dataset: c.Dataset}
	}
	r.contracts[key] = c
	r.order = append(r.order, key)
	return nil
}

// MustRegister registers a contract and panics on error. Intended for the
// built-in contract set wired at process start.
func (r *Registry) MustRegister(c *Contract) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Resolve returns the contract for a (provider, dataset) pair, or
// UnknownDatasetError.
func (r *Registry) Resolve(provider, dataset string) (*Contract, error) {
	c, ok := r.contracts[provider+"/"+dataset]
	if !ok {
		return nil, &UnknownDatasetError{Provider: provider, Dataset: dataset}
	}
	return c, nil
}

// All returns every registered contract in registration order.
func (r *Registry) All() []*Contract {
	out := make([]*Contract, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.contracts[key])
	}
	return out
}

// Select returns contracts matching the criteria. If provider is non-empty,
// only that provider's contracts are returned. If keys is non-empty, only
// those "provider/dataset" keys are returned.
func (r *Registry) Select(provider string, keys []string) ([]*Contract, error) {
	if len(keys) > 0 {
		var out []*Contract
		for _, key := range keys {
			c, ok := r.contracts[key]
			if !ok {
				return nil, eris.Errorf("registry: unknown dataset key %q", key)
			}
			if provider != "" && c.Provider != provider {
				continue
			}
			out = append(out, c)
		}
		return out, nil
	}

	if provider == "" {
		return r.All(), nil
	}
	var out []*Contract
	for _, key := range r.order {
		if c := r.contracts[key]; c.Provider == provider {
			out = append(out, c)
		}
	}
	return out, nil
}

// Keys returns all registered "provider/dataset" keys in registration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

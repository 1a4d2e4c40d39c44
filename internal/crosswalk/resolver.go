package crosswalk

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/model"
)

// Backing is the slice of the relational store the resolver needs.
type Backing interface {
	ListAliases(ctx context.Context) ([]model.Alias, error)
	ListEntities(ctx context.Context) ([]model.Entity, error)
	InsertAlias(ctx context.Context, alias model.Alias) error
}

// mapping is one immutable generation of the crosswalk. Readers grab the
// whole generation atomically, so a resolution in progress during a curation
// commit observes either the pre- or post-update state, never a mix.
type mapping struct {
	// aliases: provider -> native id -> canonical id.
	aliases map[string]map[string]string
	// byComposite: composite fallback key -> canonical ids sharing it.
	byComposite map[string][]string
	// entities: canonical id -> entity.
	entities map[string]model.Entity
}

// Resolver resolves provider-native identifiers to canonical identifiers.
// Resolution is a pure lookup against curated reference data; it never
// invents canonical identities from ingestion traffic. Curation writes are
// serialized; reads are lock-free against the last-committed generation.
type Resolver struct {
	store   Backing
	current atomic.Pointer[mapping]
	writeMu sync.Mutex // single-writer discipline for curation
}

// NewResolver creates a resolver and loads the current crosswalk state.
func NewResolver(ctx context.Context, store Backing) (*Resolver, error) {
	r := &Resolver{store: store}
	if err := r.reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) reload(ctx context.Context) error {
	aliases, err := r.store.ListAliases(ctx)
	if err != nil {
		return eris.Wrap(err, "crosswalk: load aliases")
	}
	entities, err := r.store.ListEntities(ctx)
	if err != nil {
		return eris.Wrap(err, "crosswalk: load entities")
	}

	m := &mapping{
		aliases:     make(map[string]map[string]string),
		byComposite: make(map[string][]string),
		entities:    make(map[string]model.Entity, len(entities)),
	}
	for _, a := range aliases {
		prov := m.aliases[a.Provider]
		if prov == nil {
			prov = make(map[string]string)
			m.aliases[a.Provider] = prov
		}
		prov[a.NativeID] = a.CanonicalID
	}
	for _, e := range entities {
		m.entities[e.CanonicalID] = e
		key := CompositeKey(e.Name, e.Team, e.Position)
		m.byComposite[key] = append(m.byComposite[key], e.CanonicalID)
	}
	for _, ids := range m.byComposite {
		sort.Strings(ids)
	}

	r.current.Store(m)
	return nil
}

// Resolve maps a provider-native identifier to a canonical identifier.
// A curated alias hit resolves; otherwise the composite fallback key (when
// supplied) nominates candidates as a curation aid, surfaced as Ambiguous;
// it never silently substitutes for the canonical identifier.
func (r *Resolver) Resolve(provider, nativeID string) Resolution {
	return r.ResolveWithHint(provider, nativeID, "")
}

// ResolveWithHint is Resolve with a composite fallback key derived from the
// row's fields.
func (r *Resolver) ResolveWithHint(provider, nativeID, compositeKey string) Resolution {
	m := r.current.Load()

	if prov, ok := m.aliases[provider]; ok {
		if canonical, ok := prov[nativeID]; ok {
			return Resolution{Outcome: OutcomeResolved, CanonicalID: canonical}
		}
	}

	if compositeKey != "" {
		if candidates, ok := m.byComposite[compositeKey]; ok && len(candidates) > 0 {
			out := make([]string, len(candidates))
			copy(out, candidates)
			return Resolution{Outcome: OutcomeAmbiguous, Candidates: out}
		}
	}

	return Resolution{Outcome: OutcomeUnresolved}
}

// Entity returns the entity behind a canonical identifier.
func (r *Resolver) Entity(canonicalID string) (model.Entity, bool) {
	e, ok := r.current.Load().entities[canonicalID]
	return e, ok
}

// ProposalOptions controls alias curation.
type ProposalOptions struct {
	// Override accepts a proposal that contradicts an existing mapping.
	// Requires an explicit human decision.
	Override bool
	// Source records curation provenance (operator, import batch).
	Source string
}

// ProposeAlias stages a new alias mapping. The staging guards reject
// proposals that would make one native identifier map to two canonical
// entities, or that target an unknown canonical entity. Accepted proposals
// are committed to the store and the in-memory generation is swapped.
func (r *Resolver) ProposeAlias(ctx context.Context, provider, nativeID, canonicalID string, opts ProposalOptions) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	m := r.current.Load()

	if _, ok := m.entities[canonicalID]; !ok {
		return eris.Errorf("crosswalk: unknown canonical id %q; curation never invents identities", canonicalID)
	}

	if prov, ok := m.aliases[provider]; ok {
		if existing, ok := prov[nativeID]; ok {
			if existing == canonicalID {
				return nil // already mapped identically
			}
			if !opts.Override {
				return &ConflictError{
					Provider:   provider,
					NativeID:   nativeID,
					ExistingID: existing,
					ProposedID: canonicalID,
				}
			}
			zap.L().Warn("crosswalk: overriding existing alias",
				zap.String("provider", provider),
				zap.String("native_id", nativeID),
				zap.String("old", existing),
				zap.String("new", canonicalID),
				zap.String("source", opts.Source),
			)
		}
	}

	alias := model.Alias{
		Provider:    provider,
		NativeID:    nativeID,
		CanonicalID: canonicalID,
		Source:      opts.Source,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.InsertAlias(ctx, alias); err != nil {
		return eris.Wrapf(err, "crosswalk: commit alias %s:%s", provider, nativeID)
	}

	return r.reload(ctx)
}

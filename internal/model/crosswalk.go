package model

import "time"

// EntityKind distinguishes the identity spaces tracked by the crosswalk.
type EntityKind string

const (
	EntityPlayer     EntityKind = "player"
	EntityTeam       EntityKind = "team"
	EntityDraftAsset EntityKind = "draft_asset"
)

// Entity is a provider-independent canonical identity. Entities are
// long-lived reference data, updated by explicit curation events only.
type Entity struct {
	CanonicalID string     `json:"canonical_id"`
	Kind        EntityKind `json:"kind"`
	Name        string     `json:"name"`
	Team        string     `json:"team,omitempty"`
	Position    string     `json:"position,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Alias maps one provider-native identifier onto a canonical entity.
// Within a provider the mapping is a function: a native id never maps to
// two canonical entities.
type Alias struct {
	Provider    string    `json:"provider"`
	NativeID    string    `json:"native_id"`
	CanonicalID string    `json:"canonical_id"`
	Source      string    `json:"source,omitempty"` // curation provenance
	CreatedAt   time.Time `json:"created_at"`
}

// UnresolvedKey is a native identifier seen during ingestion with no curated
// alias. It is nominated for manual crosswalk curation, never silently lost.
type UnresolvedKey struct {
	Provider     string    `json:"provider"`
	Dataset      string    `json:"dataset"`
	NativeID     string    `json:"native_id"`
	CompositeKey string    `json:"composite_key,omitempty"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	Occurrences  int64     `json:"occurrences"`
}

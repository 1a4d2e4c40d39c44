package crosswalk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftroom/stats-cli/internal/model"
)

// fakeBacking is an in-memory Backing for resolver tests.
type fakeBacking struct {
	aliases  []model.Alias
	entities []model.Entity
	inserted []model.Alias
}

func (f *fakeBacking) ListAliases(ctx context.Context) ([]model.Alias, error) {
	out := make([]model.Alias, len(f.aliases))
	copy(out, f.aliases)
	return append(out, f.inserted...), nil
}

func (f *fakeBacking) ListEntities(ctx context.Context) ([]model.Entity, error) {
	return f.entities, nil
}

func (f *fakeBacking) InsertAlias(ctx context.Context, alias model.Alias) error {
	f.inserted = append(f.inserted, alias)
	return nil
}

func testBacking() *fakeBacking {
	return &fakeBacking{
		entities: []model.Entity{
			{CanonicalID: "player:1", Kind: model.EntityPlayer, Name: "Odell Beckham Jr.", Team: "BAL", Position: "WR"},
			{CanonicalID: "player:2", Kind: model.EntityPlayer, Name: "Patrick Mahomes", Team: "KC", Position: "QB"},
			// Two distinct players sharing a composite key.
			{CanonicalID: "player:3", Kind: model.EntityPlayer, Name: "Mike Williams", Team: "NYJ", Position: "WR"},
			{CanonicalID: "player:4", Kind: model.EntityPlayer, Name: "Mike Williams", Team: "NYJ", Position: "WR"},
		},
		aliases: []model.Alias{
			{Provider: "statsfeed", NativeID: "sf-100", CanonicalID: "player:1"},
		},
	}
}

func TestResolve_AliasHit(t *testing.T) {
	r, err := NewResolver(context.Background(), testBacking())
	require.NoError(t, err)

	res := r.Resolve("statsfeed", "sf-100")
	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, "player:1", res.CanonicalID)

	entity, ok := r.Entity(res.CanonicalID)
	require.True(t, ok)
	assert.Equal(t, "BAL", entity.Team)
}

func TestResolve_UnknownProviderOrID(t *testing.T) {
	r, err := NewResolver(context.Background(), testBacking())
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnresolved, r.Resolve("statsfeed", "sf-999").Outcome)
	assert.Equal(t, OutcomeUnresolved, r.Resolve("leaguehq", "sf-100").Outcome)
}

func TestResolveWithHint_CompositeNeverAutoResolves(t *testing.T) {
	r, err := NewResolver(context.Background(), testBacking())
	require.NoError(t, err)

	// Unique composite match is still only a nomination.
	res := r.ResolveWithHint("leaguehq", "lh-5", CompositeKey("Patrick Mahomes", "KC", "QB"))
	assert.Equal(t, OutcomeAmbiguous, res.Outcome)
	assert.Empty(t, res.CanonicalID)
	assert.Equal(t, []string{"player:2"}, res.Candidates)
}

func TestResolveWithHint_MultipleCandidates(t *testing.T) {
	r, err := NewResolver(context.Background(), testBacking())
	require.NoError(t, err)

	res := r.ResolveWithHint("leaguehq", "lh-9", CompositeKey("Mike Williams", "NYJ", "WR"))
	assert.Equal(t, OutcomeAmbiguous, res.Outcome)
	assert.Equal(t, []string{"player:3", "player:4"}, res.Candidates)
}

func TestProposeAlias_Accepted(t *testing.T) {
	backing := testBacking()
	r, err := NewResolver(context.Background(), backing)
	require.NoError(t, err)

	err = r.ProposeAlias(context.Background(), "leaguehq", "lh-5", "player:2", ProposalOptions{Source: "test"})
	require.NoError(t, err)
	require.Len(t, backing.inserted, 1)
	assert.Equal(t, "player:2", backing.inserted[0].CanonicalID)

	// The new generation serves the alias immediately.
	res := r.Resolve("leaguehq", "lh-5")
	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, "player:2", res.CanonicalID)
}

func TestProposeAlias_UnknownCanonicalRejected(t *testing.T) {
	backing := testBacking()
	r, err := NewResolver(context.Background(), backing)
	require.NoError(t, err)

	err = r.ProposeAlias(context.Background(), "leaguehq", "lh-5", "player:999", ProposalOptions{})
	require.Error(t, err)
	assert.Empty(t, backing.inserted)
}

func TestProposeAlias_ConflictRequiresOverride(t *testing.T) {
	backing := testBacking()
	r, err := NewResolver(context.Background(), backing)
	require.NoError(t, err)

	err = r.ProposeAlias(context.Background(), "statsfeed", "sf-100", "player:2", ProposalOptions{})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "player:1", conflict.ExistingID)
	assert.Equal(t, "player:2", conflict.ProposedID)
	assert.Empty(t, backing.inserted)

	// An explicit override commits and rewires resolution.
	err = r.ProposeAlias(context.Background(), "statsfeed", "sf-100", "player:2", ProposalOptions{Override: true, Source: "correction"})
	require.NoError(t, err)
	assert.Equal(t, "player:2", r.Resolve("statsfeed", "sf-100").CanonicalID)
}

func TestProposeAlias_IdenticalIsNoOp(t *testing.T) {
	backing := testBacking()
	r, err := NewResolver(context.Background(), backing)
	require.NoError(t, err)

	err = r.ProposeAlias(context.Background(), "statsfeed", "sf-100", "player:1", ProposalOptions{})
	require.NoError(t, err)
	assert.Empty(t, backing.inserted)
}

func TestResolver_ConcurrentReadsDuringCuration(t *testing.T) {
	backing := testBacking()
	r, err := NewResolver(context.Background(), backing)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			res := r.Resolve("statsfeed", "sf-100")
			// Either generation is fine; a torn read is not.
			assert.Equal(t, OutcomeResolved, res.Outcome)
		}
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, r.ProposeAlias(context.Background(), "leaguehq", "lh-c", "player:2", ProposalOptions{}))
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish")
	}
}

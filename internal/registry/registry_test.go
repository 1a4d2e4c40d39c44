package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftroom/stats-cli/internal/model"
)

func testContract(provider, dataset string) *Contract {
	return &Contract{
		Provider:   provider,
		Dataset:    dataset,
		LoaderPath: provider + "." + dataset,
		PrimaryKey: []string{"id"},
		Columns: []Column{
			{"id", TypeString},
			{"name", TypeString},
		},
		Cadence: Daily,
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(testContract("statsfeed", "players")))

	err := r.Register(testContract("statsfeed", "players"))
	require.Error(t, err)
	var dup *DuplicateRegistrationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "statsfeed", dup.Provider)
	assert.Equal(t, "players", dup.Dataset)
}

func TestResolve_Unknown(t *testing.T) {
	r := New()
	_, err := r.Resolve("nope", "nothing")
	var unknown *UnknownDatasetError
	require.ErrorAs(t, err, &unknown)
}

func TestRegister_ValidatesPrimaryKey(t *testing.T) {
	r := New()
	c := testContract("statsfeed", "players")
	c.PrimaryKey = []string{"missing_col"}
	require.Error(t, r.Register(c))

	c = testContract("statsfeed", "players")
	c.PrimaryKey = nil
	require.Error(t, r.Register(c))
}

func TestRegister_ValidatesNativeIDColumn(t *testing.T) {
	r := New()
	c := testContract("statsfeed", "players")
	c.NativeIDColumn = "no_such_column"
	require.Error(t, r.Register(c))
}

func TestAll_PreservesRegistrationOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(testContract("b", "two")))
	require.NoError(t, r.Register(testContract("a", "one")))
	require.NoError(t, r.Register(testContract("c", "three")))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "b/two", all[0].Key())
	assert.Equal(t, "a/one", all[1].Key())
	assert.Equal(t, "c/three", all[2].Key())
}

func TestSelect(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(testContract("statsfeed", "players")))
	require.NoError(t, r.Register(testContract("statsfeed", "weekly_stats")))
	require.NoError(t, r.Register(testContract("leaguehq", "rosters")))

	byProvider, err := r.Select("statsfeed", nil)
	require.NoError(t, err)
	require.Len(t, byProvider, 2)

	byKey, err := r.Select("", []string{"leaguehq/rosters"})
	require.NoError(t, err)
	require.Len(t, byKey, 1)
	assert.Equal(t, "rosters", byKey[0].Dataset)

	_, err = r.Select("", []string{"no/such"})
	require.Error(t, err)
}

func TestTypeCompatible(t *testing.T) {
	assert.True(t, TypeString.Compatible("x"))
	assert.True(t, TypeInt.Compatible(int64(3)))
	assert.True(t, TypeFloat.Compatible(int64(3)), "ints widen to float")
	assert.True(t, TypeString.Compatible(nil), "nil passes every type")
	assert.False(t, TypeInt.Compatible("3"))
	assert.False(t, TypeBool.Compatible(1))
}

func TestDefault_ContractsWellFormed(t *testing.T) {
	r := Default()
	all := r.All()
	require.Len(t, all, 6)
	for _, c := range all {
		assert.NotEmpty(t, c.LoaderPath, c.Key())
		assert.NotEmpty(t, c.PrimaryKey, c.Key())
		if c.NativeIDColumn != "" {
			assert.NotEqual(t, model.EntityKind(""), c.Entity, c.Key())
		}
	}
}

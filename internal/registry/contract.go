// Package registry is the authoritative declaration of which datasets exist,
// which loader produces them, and what correctness means for each.
package registry

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/draftroom/stats-cli/internal/model"
)

// Type is the semantic value type of a contract column.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
	TypeDate   Type = "date"
)

// Compatible reports whether a loader-produced value satisfies the type.
// Nil is compatible with every type; nullability is the coverage check's
// concern, not the schema check's.
func (t Type) Compatible(v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		switch v.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case TypeFloat:
		switch v.(type) {
		case float32, float64, int, int64:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeDate:
		_, ok := v.(time.Time)
		return ok
	default:
		return false
	}
}

// Cadence describes how often a dataset's upstream refreshes.
type Cadence string

const (
	TwiceDaily Cadence = "twice_daily"
	Daily      Cadence = "daily"
	Weekly     Cadence = "weekly"
)

// Interval returns the minimum gap between scheduled runs for the cadence.
func (c Cadence) Interval() time.Duration {
	switch c {
	case TwiceDaily:
		return 12 * time.Hour
	case Daily:
		return 24 * time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Column pairs a contract column name with its semantic type. Contracts keep
// columns ordered so snapshot files have a deterministic layout.
type Column struct {
	Name string
	Type Type
}

// Contract declares the schema and keys for one (provider, dataset).
// Contracts are immutable after registration; a schema change ships as a new
// deployment of the registry, never an in-place edit.
type Contract struct {
	Provider   string
	Dataset    string
	LoaderPath string   // logical identifier of the producing loader
	PrimaryKey []string // must uniquely identify a row within a snapshot
	Columns    []Column
	Cadence    Cadence

	// Entity resolution hooks: the column carrying the provider-native
	// identifier and the identity space it belongs to. Empty NativeIDColumn
	// means the dataset carries no resolvable entities.
	NativeIDColumn string
	Entity         model.EntityKind
}

// Key returns the registry key "provider/dataset".
func (c *Contract) Key() string {
	return c.Provider + "/" + c.Dataset
}

// ColumnType returns the declared type of a column.
func (c *Contract) ColumnType(name string) (Type, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col.Type, true
		}
	}
	return "", false
}

// ColumnNames returns the declared column names in order.
func (c *Contract) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// validate checks structural sanity at registration time.
func (c *Contract) validate() error {
	if c.Provider == "" || c.Dataset == "" {
		return eris.New("registry: contract missing provider or dataset")
	}
	if c.LoaderPath == "" {
		return eris.Errorf("registry: contract %s has no loader", c.Key())
	}
	if len(c.PrimaryKey) == 0 {
		return eris.Errorf("registry: contract %s has no primary key", c.Key())
	}
	for _, pk := range c.PrimaryKey {
		if _, ok := c.ColumnType(pk); !ok {
			return eris.Errorf("registry: contract %s primary key column %q not in schema", c.Key(), pk)
		}
	}
	if c.NativeIDColumn != "" {
		if _, ok := c.ColumnType(c.NativeIDColumn); !ok {
			return eris.Errorf("registry: contract %s native id column %q not in schema", c.Key(), c.NativeIDColumn)
		}
	}
	return nil
}

// Package model holds the shared data types passed between the registry,
// loaders, quality gate, crosswalk, and snapshot store.
package model

import "time"

// Row is a single record produced by a loader, keyed by column name.
// Values are one of: string, int64, float64, bool, time.Time, or nil.
type Row map[string]any

// RawBatch is the in-flight result of one loader invocation. It conforms
// structurally to a dataset contract but has not been validated yet. A batch
// is consumed by the quality gate and crosswalk and discarded once published.
type RawBatch struct {
	Provider      string    `json:"provider"`
	Dataset       string    `json:"dataset"`
	CapturedAt    time.Time `json:"captured_at"` // UTC capture timestamp
	SourceName    string    `json:"source_name"`
	SourceVersion string    `json:"source_version"`
	LoaderPath    string    `json:"loader_path"`
	Columns       []string  `json:"columns"` // declared column order
	Rows          []Row     `json:"rows"`
}

// HasColumn reports whether the batch declares the given column.
func (b *RawBatch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column to the declared order if not already present.
func (b *RawBatch) AddColumn(name string) {
	if !b.HasColumn(name) {
		b.Columns = append(b.Columns, name)
	}
}

package model

import "time"

// DateFormat is the partition-key layout for as-of dates.
const DateFormat = "2006-01-02"

// Meta is the sidecar object written next to every snapshot data file.
// Field names are a bit-exact contract consumed by the transformation layer.
type Meta struct {
	Dataset       string `json:"dataset"`
	AsOfDatetime  string `json:"asof_datetime"` // ISO-8601, UTC
	LoaderPath    string `json:"loader_path"`
	SourceName    string `json:"source_name"`
	SourceVersion string `json:"source_version"`
	OutputPath    string `json:"output_path"`
	RowCount      int64  `json:"row_count"`
}

// SnapshotRef identifies one immutable published snapshot: the
// (provider, dataset, as-of-date) partition plus its content identifier.
type SnapshotRef struct {
	Provider  string    `json:"provider"`
	Dataset   string    `json:"dataset"`
	AsOf      time.Time `json:"as_of"`
	ContentID string    `json:"content_id"`
	DataKey   string    `json:"data_key"` // backend key of the columnar file
	Meta      Meta      `json:"meta"`
}

// Date returns the partition key for the snapshot's as-of date.
func (r *SnapshotRef) Date() string {
	return r.AsOf.UTC().Format(DateFormat)
}

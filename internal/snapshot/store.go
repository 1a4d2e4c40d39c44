// Package snapshot persists validated batches as immutable, date-partitioned
// columnar snapshots with sidecar metadata.
//
// Layout under the root:
//
//	<provider>/<dataset>/dt=<YYYY-MM-DD>/<dataset>_<content-id>.arrow
//	<provider>/<dataset>/dt=<YYYY-MM-DD>/<dataset>_<content-id>_meta.json
//
// The data file is written first and the sidecar last; a snapshot without
// its sidecar is invisible, which makes the sidecar the commit marker on
// backends without rename.
package snapshot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/draftroom/stats-cli/internal/model"
)

const (
	dataExt    = ".arrow"
	metaSuffix = "_meta.json"
)

// Store is the immutable snapshot store. Published files are never modified
// or deleted; corrections publish a new content identifier alongside.
type Store struct {
	backend Backend
}

// New creates a Store over the given backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// ContentID derives the content identifier for an encoded payload.
func ContentID(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// PublishRequest carries everything needed to publish one snapshot.
type PublishRequest struct {
	Provider      string
	Dataset       string
	AsOf          time.Time
	Fields        []Field
	Rows          []model.Row
	LoaderPath    string
	SourceName    string
	SourceVersion string
	CapturedAt    time.Time

	// Correction permits superseding an existing partition with new
	// content. The prior snapshot's files are left untouched.
	Correction bool
}

func partitionPrefix(provider, dataset, date string) string {
	return fmt.Sprintf("%s/%s/dt=%s/", provider, dataset, date)
}

// Publish encodes and durably stores a validated batch. Re-publishing
// identical content for the same partition is a deterministic no-op
// returning the existing reference. Differing content without correction
// mode fails with AlreadyExistsError.
func (s *Store) Publish(ctx context.Context, req PublishRequest) (*model.SnapshotRef, error) {
	data, err := Encode(req.Fields, req.Rows)
	if err != nil {
		return nil, err
	}
	cid := ContentID(data)
	date := req.AsOf.UTC().Format(model.DateFormat)

	existing, err := s.listPartition(ctx, req.Provider, req.Dataset, date)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].ContentID == cid {
			zap.L().Info("snapshot already published, idempotent no-op",
				zap.String("provider", req.Provider),
				zap.String("dataset", req.Dataset),
				zap.String("date", date),
				zap.String("content_id", cid),
			)
			return &existing[i], nil
		}
	}
	if len(existing) > 0 && !req.Correction {
		return nil, &AlreadyExistsError{
			Provider:  req.Provider,
			Dataset:   req.Dataset,
			Date:      date,
			ContentID: existing[len(existing)-1].ContentID,
		}
	}

	prefix := partitionPrefix(req.Provider, req.Dataset, date)
	dataKey := prefix + req.Dataset + "_" + cid + dataExt
	metaKey := prefix + req.Dataset + "_" + cid + metaSuffix

	meta := model.Meta{
		Dataset:       req.Dataset,
		AsOfDatetime:  req.CapturedAt.UTC().Format(time.RFC3339),
		LoaderPath:    req.LoaderPath,
		SourceName:    req.SourceName,
		SourceVersion: req.SourceVersion,
		OutputPath:    dataKey,
		RowCount:      int64(len(req.Rows)),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: marshal meta")
	}

	// Data first, sidecar last: the sidecar commits the snapshot.
	if err := s.backend.Write(ctx, dataKey, data); err != nil {
		return nil, err
	}
	if err := s.backend.Write(ctx, metaKey, metaJSON); err != nil {
		return nil, err
	}

	zap.L().Info("snapshot published",
		zap.String("provider", req.Provider),
		zap.String("dataset", req.Dataset),
		zap.String("date", date),
		zap.String("content_id", cid),
		zap.Int("rows", len(req.Rows)),
	)

	return &model.SnapshotRef{
		Provider:  req.Provider,
		Dataset:   req.Dataset,
		AsOf:      req.AsOf.UTC(),
		ContentID: cid,
		DataKey:   dataKey,
		Meta:      meta,
	}, nil
}

// listPartition returns committed snapshots within one dt= partition,
// ordered by capture time.
func (s *Store) listPartition(ctx context.Context, provider, dataset, date string) ([]model.SnapshotRef, error) {
	keys, err := s.backend.List(ctx, partitionPrefix(provider, dataset, date))
	if err != nil {
		return nil, err
	}
	return s.refsFromKeys(ctx, provider, dataset, keys)
}

func (s *Store) refsFromKeys(ctx context.Context, provider, dataset string, keys []string) ([]model.SnapshotRef, error) {
	var refs []model.SnapshotRef
	for _, key := range keys {
		if !strings.HasSuffix(key, metaSuffix) {
			continue
		}
		date, cid, ok := parseMetaKey(key, dataset)
		if !ok {
			continue
		}
		raw, err := s.backend.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		var meta model.Meta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, eris.Wrapf(err, "snapshot: parse sidecar %s", key)
		}
		asOf, err := time.Parse(model.DateFormat, date)
		if err != nil {
			continue
		}
		refs = append(refs, model.SnapshotRef{
			Provider:  provider,
			Dataset:   dataset,
			AsOf:      asOf.UTC(),
			ContentID: cid,
			DataKey:   meta.OutputPath,
			Meta:      meta,
		})
	}

	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].AsOf.Equal(refs[j].AsOf) {
			return refs[i].AsOf.Before(refs[j].AsOf)
		}
		return refs[i].Meta.AsOfDatetime < refs[j].Meta.AsOfDatetime
	})
	return refs, nil
}

// parseMetaKey extracts the partition date and content id from a sidecar key
// shaped provider/dataset/dt=DATE/dataset_CID_meta.json.
func parseMetaKey(key, dataset string) (date, cid string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	dtPart := parts[len(parts)-2]
	if !strings.HasPrefix(dtPart, "dt=") {
		return "", "", false
	}
	date = strings.TrimPrefix(dtPart, "dt=")

	name := parts[len(parts)-1]
	name = strings.TrimSuffix(name, metaSuffix)
	cid = strings.TrimPrefix(name, dataset+"_")
	if cid == "" || cid == name {
		return "", "", false
	}
	return date, cid, true
}

// List returns all committed snapshots for a (provider, dataset) ordered by
// as-of date ascending. Superseded corrections within a partition appear in
// capture order before their replacement.
func (s *Store) List(ctx context.Context, provider, dataset string) ([]model.SnapshotRef, error) {
	keys, err := s.backend.List(ctx, provider+"/"+dataset+"/")
	if err != nil {
		return nil, err
	}
	return s.refsFromKeys(ctx, provider, dataset, keys)
}

// Latest returns the most recent snapshot, or nil when none exists.
func (s *Store) Latest(ctx context.Context, provider, dataset string) (*model.SnapshotRef, error) {
	refs, err := s.List(ctx, provider, dataset)
	if err != nil || len(refs) == 0 {
		return nil, err
	}
	return &refs[len(refs)-1], nil
}

// AsOf returns the latest snapshot whose as-of date is on or before the
// given date.
func (s *Store) AsOf(ctx context.Context, provider, dataset string, date time.Time) (*model.SnapshotRef, error) {
	refs, err := s.List(ctx, provider, dataset)
	if err != nil {
		return nil, err
	}
	cut := date.UTC().Format(model.DateFormat)
	for i := len(refs) - 1; i >= 0; i-- {
		if refs[i].Date() <= cut {
			return &refs[i], nil
		}
	}
	return nil, nil
}

// Read loads and decodes a snapshot's columnar payload.
func (s *Store) Read(ctx context.Context, ref *model.SnapshotRef) ([]string, []model.Row, error) {
	data, err := s.backend.Read(ctx, ref.DataKey)
	if err != nil {
		return nil, nil, err
	}
	return Decode(data)
}

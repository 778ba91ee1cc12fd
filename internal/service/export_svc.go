package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/subhajitsr/data-assignment-SPH/internal/columnar"
	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/metrics"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/objstore"
	"github.com/subhajitsr/data-assignment-SPH/pkg/hash"
)

// DefaultBasePrefix is the object prefix every record set directory sits under.
const DefaultBasePrefix = "dump/parquet"

// ExportedFile describes one uploaded extract file.
type ExportedFile struct {
	RecordSet model.RecordSet
	Key       string // full object key
	FileName  string // name relative to the record set prefix
	Rows      int
	SHA256    string
}

// ExportService writes a snapshot as one Parquet file per record set.
type ExportService struct {
	store objstore.Store
	base  string
	log   zerolog.Logger
}

// NewExportService creates an exporter writing below base.
func NewExportService(store objstore.Store, base string, log zerolog.Logger) *ExportService {
	if base == "" {
		base = DefaultBasePrefix
	}
	return &ExportService{store: store, base: base, log: log.With().Str("component", "exporter").Logger()}
}

// Prefix returns the object prefix of a record set's directory.
func (s *ExportService) Prefix(rs model.RecordSet) string {
	return objstore.Join(s.base, rs.Prefix())
}

// Export uploads the four record sets of snap in order and stops at the
// first failure.
func (s *ExportService) Export(ctx context.Context, snap *model.Snapshot) (map[model.RecordSet]ExportedFile, error) {
	files := make(map[model.RecordSet]ExportedFile, len(model.RecordSets))
	for _, rs := range model.RecordSets {
		f, err := s.exportOne(ctx, snap, rs)
		if err != nil {
			return files, err
		}
		files[rs] = f
	}
	return files, nil
}

func (s *ExportService) exportOne(ctx context.Context, snap *model.Snapshot, rs model.RecordSet) (ExportedFile, error) {
	data, err := encode(snap, rs)
	if err != nil {
		return ExportedFile{}, etlerr.Wrap(etlerr.ErrExecution, "export", string(rs), err)
	}

	name := rs.FileName(snap.Stamp.At)
	f := ExportedFile{
		RecordSet: rs,
		Key:       objstore.Join(s.Prefix(rs), name),
		FileName:  name,
		Rows:      snap.Len(rs),
		SHA256:    hash.SHA256HexBytes(data),
	}
	meta := map[string]string{
		"sha256":     f.SHA256,
		"record-set": string(rs),
		"rows":       fmt.Sprint(f.Rows),
		"etl-ts":     snap.Stamp.ETLTs,
	}
	if err := s.store.Put(ctx, f.Key, data, meta); err != nil {
		return ExportedFile{}, etlerr.Wrap(etlerr.ErrExecution, "export", string(rs), fmt.Errorf("%s upload failed: %w", rs, err))
	}

	metrics.ExportedRows.WithLabelValues(string(rs)).Set(float64(f.Rows))
	s.log.Info().
		Str("record_set", string(rs)).
		Str("key", f.Key).
		Int("rows", f.Rows).
		Str("sha256", hash.Short(f.SHA256, 12)).
		Msg("file uploaded")
	return f, nil
}

func encode(snap *model.Snapshot, rs model.RecordSet) ([]byte, error) {
	switch rs {
	case model.ChannelMeta:
		return columnar.Encode(snap.ChannelMeta)
	case model.ChannelStats:
		return columnar.Encode(snap.ChannelStats)
	case model.VideoMeta:
		return columnar.Encode(snap.VideoMeta)
	case model.VideoStats:
		return columnar.Encode(snap.VideoStats)
	}
	return nil, fmt.Errorf("unknown record set %q", rs)
}

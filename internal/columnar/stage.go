package columnar

import (
	"context"
	"fmt"
	"strings"

	"github.com/subhajitsr/data-assignment-SPH/internal/objstore"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
)

// StageReader resolves external stage locations to objects and decodes them.
// It stands in for the warehouse's own COPY reader in dry runs.
type StageReader struct {
	Store objstore.Store
	// Prefixes maps an uppercased stage name to the object prefix it points at.
	Prefixes map[string]string
}

// ReadStage returns the records of the named file, or of every Parquet
// object under the stage when no path is given.
func (s StageReader) ReadStage(ctx context.Context, loc sqlgen.Location) ([]map[string]any, error) {
	prefix, ok := s.Prefixes[strings.ToUpper(loc.Stage)]
	if !ok {
		return nil, fmt.Errorf("stage %s is not mapped to an object prefix", loc.Stage)
	}

	keys := []string{objstore.Join(prefix, loc.Path)}
	if loc.Path == "" {
		var err error
		if keys, err = s.Store.List(ctx, strings.TrimSuffix(prefix, "/")+"/"); err != nil {
			return nil, err
		}
	}

	var out []map[string]any
	for _, key := range keys {
		if !strings.HasSuffix(key, ".parquet") {
			continue
		}
		data, err := s.Store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		recs, err := Records(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

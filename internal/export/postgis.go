// Package export loads a scored boundary layer into a PostGIS table.
package export

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/db"
	"github.com/sells-group/site-selection/internal/geo"
)

const defaultBatchSize = 5000

// Modes.
const (
	ModeReplace = "replace"
	ModeUpsert  = "upsert"
)

// Columns is the column order of exported rows.
var Columns = []string{"area_id", "barangay", "citymun", "province", "score", "geom"}

// Options configures Load.
type Options struct {
	Table     string // optionally schema-qualified
	Mode      string // replace (default) or upsert
	BatchSize int    // rows per COPY; 0 = 5000
}

// LoadPostGIS replaces the contents of table with the layer.
func LoadPostGIS(ctx context.Context, pool db.Pool, table string, layer *geo.Layer) (int64, error) {
	return Load(ctx, pool, layer, Options{Table: table})
}

// Load creates the table if missing and writes the layer. Replace mode
// truncates and COPYs inside one transaction; upsert mode merges on area_id.
func Load(ctx context.Context, pool db.Pool, layer *geo.Layer, opts Options) (int64, error) {
	if opts.Table == "" {
		return 0, eris.New("export: table is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeReplace
	}

	rows, err := Rows(layer)
	if err != nil {
		return 0, err
	}

	log := zap.L().With(
		zap.String("component", "export"),
		zap.String("table", opts.Table),
		zap.String("mode", opts.Mode),
		zap.Int("total_rows", len(rows)),
	)

	if err := EnsureTable(ctx, pool, opts.Table); err != nil {
		return 0, err
	}

	var n int64
	switch opts.Mode {
	case ModeReplace:
		n, err = replace(ctx, pool, opts, rows)
	case ModeUpsert:
		n, err = db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        opts.Table,
			Columns:      Columns,
			ConflictKeys: []string{"area_id"},
		}, rows)
	default:
		return 0, eris.Errorf("export: unknown mode %q", opts.Mode)
	}
	if err != nil {
		return 0, err
	}

	log.Info("layer exported", zap.Int64("rows", n))
	return n, nil
}

func replace(ctx context.Context, pool db.Pool, opts Options, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "export: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := TruncateTable(ctx, tx, opts.Table); err != nil {
		return 0, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		n, err := db.CopyFrom(ctx, tx, opts.Table, Columns, rows[i:end])
		if err != nil {
			return 0, eris.Wrapf(err, "export: batch %d-%d", i, end)
		}
		total += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "export: commit")
	}
	return total, nil
}

// EnsureTable creates the target table and its spatial index when missing.
func EnsureTable(ctx context.Context, pool db.Pool, table string) error {
	ident := db.Identifier(table)
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	area_id  integer PRIMARY KEY,
	barangay text NOT NULL,
	citymun  text NOT NULL,
	province text,
	score    double precision,
	geom     geometry(MultiPolygon, %d)
)`, ident.Sanitize(), geo.SRID)
	if _, err := pool.Exec(ctx, create); err != nil {
		return eris.Wrapf(err, "export: create table %s", table)
	}

	idx := pgx.Identifier{ident[len(ident)-1] + "_geom_idx"}.Sanitize()
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)", idx, ident.Sanitize())
	if _, err := pool.Exec(ctx, index); err != nil {
		return eris.Wrapf(err, "export: create index on %s", table)
	}
	return nil
}

// TruncateTable empties the target table before a reload.
func TruncateTable(ctx context.Context, pool db.Pool, table string) error {
	sql := fmt.Sprintf("TRUNCATE %s", db.Identifier(table).Sanitize())
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "export: truncate %s", table)
	}
	return nil
}

// Rows converts the layer to COPY rows in Columns order. Missing scores
// become NULL.
func Rows(layer *geo.Layer) ([][]any, error) {
	if layer == nil {
		return nil, eris.New("export: nil layer")
	}
	rows := make([][]any, 0, len(layer.Areas))
	for _, a := range layer.Areas {
		wkb, err := geo.EncodeEWKB(a.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "export: area %d", a.ID)
		}
		var score any
		if !math.IsNaN(a.Score) {
			score = a.Score
		}
		var province any
		if a.Province != "" {
			province = a.Province
		}
		rows = append(rows, []any{a.ID, a.Barangay, a.CityMun, province, score, wkb})
	}
	return rows, nil
}

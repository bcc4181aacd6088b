// Package catalog indexes generated towers in a SQLite database so datasets
// can be queried by height, label and silhouette.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/harvard-visionlab/block-towers/internal/dataset"
	"github.com/harvard-visionlab/block-towers/internal/stability"
	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// Partitions of a split.
const (
	PartitionTrain = "train"
	PartitionTest  = "test"
)

var ErrNotFound = errors.New("catalog: not found")

type Catalog struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the catalog at path and migrates it to the latest
// schema. Use ":memory:" for a throwaway catalog.
func Open(path string, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases and pragmas consistent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	c := &Catalog{db: db, log: log}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// DatasetInfo summarizes one stored dataset.
type DatasetInfo struct {
	ID        string
	Preset    string
	Seed      uint64
	CreatedAt time.Time
	Towers    int
}

// Record is one stored tower.
type Record struct {
	ID          string
	DatasetID   string
	Key         string
	Partition   string
	NumBlocks   int
	Label       int
	ShapeCoarse string
	ShapeFine   string
	Tower       tower.Tower
}

// Query filters records. Zero values and a nil Label match everything.
type Query struct {
	DatasetID string
	NumBlocks int
	Label     *int
	Partition string
	Limit     int
}

// WithLabel returns a copy of q restricted to one class.
func (q Query) WithLabel(label int) Query {
	q.Label = &label
	return q
}

// InsertDataset stores every example of ds in one transaction and returns the
// new dataset id.
func (c *Catalog) InsertDataset(ctx context.Context, ds *dataset.Dataset, seed uint64) (string, error) {
	id := uuid.NewString()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (dataset_id, preset, seed, created_at) VALUES (?, ?, ?, ?)`,
		id, ds.Preset, int64(seed), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", fmt.Errorf("insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO towers (tower_id, dataset_id, split_key, partition, num_blocks, label, shape_coarse, shape_fine, blocks_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	n := 0
	for _, key := range ds.Keys() {
		split := ds.Splits[key]
		for _, part := range []struct {
			name     string
			examples []dataset.Example
		}{{PartitionTrain, split.Train}, {PartitionTest, split.Test}} {
			for _, ex := range part.examples {
				r, err := newRecord(id, key, part.name, ex)
				if err != nil {
					return "", err
				}
				blocks, err := json.Marshal(r.Tower)
				if err != nil {
					return "", err
				}
				if _, err := stmt.ExecContext(ctx, r.ID, id, key, part.name, r.NumBlocks, r.Label, r.ShapeCoarse, r.ShapeFine, string(blocks)); err != nil {
					return "", fmt.Errorf("insert tower: %w", err)
				}
				n++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	c.log.Info("catalog dataset stored", "dataset", id, "preset", ds.Preset, "towers", n)
	return id, nil
}

func newRecord(datasetID, key, partition string, ex dataset.Example) (Record, error) {
	coarse, err := shapeOrFlat(ex.Tower, stability.Coarse)
	if err != nil {
		return Record{}, err
	}
	fine, err := shapeOrFlat(ex.Tower, stability.Fine)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:          uuid.NewString(),
		DatasetID:   datasetID,
		Key:         key,
		Partition:   partition,
		NumBlocks:   ex.NumBlocks,
		Label:       ex.Label,
		ShapeCoarse: coarse,
		ShapeFine:   fine,
		Tower:       ex.Tower,
	}, nil
}

// shapeOrFlat returns "" for single-block towers, which have no silhouette.
func shapeOrFlat(t tower.Tower, res stability.Resolution) (string, error) {
	if len(t) == 1 {
		return "", nil
	}
	return stability.ShapeCode(t, res)
}

func (q Query) where() (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if q.DatasetID != "" {
		clauses = append(clauses, "dataset_id = ?")
		args = append(args, q.DatasetID)
	}
	if q.NumBlocks > 0 {
		clauses = append(clauses, "num_blocks = ?")
		args = append(args, q.NumBlocks)
	}
	if q.Label != nil {
		clauses = append(clauses, "label = ?")
		args = append(args, *q.Label)
	}
	if q.Partition != "" {
		clauses = append(clauses, "partition = ?")
		args = append(args, q.Partition)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Count returns the number of towers matching q.
func (c *Catalog) Count(ctx context.Context, q Query) (int, error) {
	where, args := q.where()
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM towers"+where, args...).Scan(&n)
	return n, err
}

// Towers returns the towers matching q in insertion order.
func (c *Catalog) Towers(ctx context.Context, q Query) ([]Record, error) {
	where, args := q.where()
	query := `SELECT tower_id, dataset_id, split_key, partition, num_blocks, label, shape_coarse, shape_fine, blocks_json
		FROM towers` + where + " ORDER BY rowid"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var r Record
		var blocks string
		if err := rows.Scan(&r.ID, &r.DatasetID, &r.Key, &r.Partition, &r.NumBlocks, &r.Label, &r.ShapeCoarse, &r.ShapeFine, &blocks); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blocks), &r.Tower); err != nil {
			return nil, fmt.Errorf("tower %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Tower loads one tower by id.
func (c *Catalog) Tower(ctx context.Context, id string) (*Record, error) {
	var r Record
	var blocks string
	err := c.db.QueryRowContext(ctx, `
		SELECT tower_id, dataset_id, split_key, partition, num_blocks, label, shape_coarse, shape_fine, blocks_json
		FROM towers WHERE tower_id = ?`, id).
		Scan(&r.ID, &r.DatasetID, &r.Key, &r.Partition, &r.NumBlocks, &r.Label, &r.ShapeCoarse, &r.ShapeFine, &blocks)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tower %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(blocks), &r.Tower); err != nil {
		return nil, err
	}
	return &r, nil
}

// Datasets lists stored datasets, newest first.
func (c *Catalog) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT d.dataset_id, d.preset, d.seed, d.created_at, COUNT(t.tower_id)
		FROM datasets d LEFT JOIN towers t ON t.dataset_id = d.dataset_id
		GROUP BY d.dataset_id
		ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DatasetInfo, 0)
	for rows.Next() {
		var info DatasetInfo
		var seed int64
		var created string
		if err := rows.Scan(&info.ID, &info.Preset, &seed, &created, &info.Towers); err != nil {
			return nil, err
		}
		info.Seed = uint64(seed)
		if info.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and its towers.
func (c *Catalog) DeleteDataset(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM datasets WHERE dataset_id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: dataset %s", ErrNotFound, id)
	}
	return nil
}

// Coverage counts towers per silhouette for one height of a dataset.
type Coverage struct {
	Resolution stability.Resolution
	NumBlocks  int
	Counts     map[string]int
	Shapes     []string
}

// Missing lists silhouettes with no towers, in enumeration order.
func (cv *Coverage) Missing() []string {
	out := make([]string, 0)
	for _, s := range cv.Shapes {
		if cv.Counts[s] == 0 {
			out = append(out, s)
		}
	}
	return out
}

// ShapeCoverage counts stored towers of the given height per silhouette.
// Every possible silhouette appears in Counts, with zero for missing ones.
func (c *Catalog) ShapeCoverage(ctx context.Context, q Query, res stability.Resolution) (*Coverage, error) {
	if q.NumBlocks < 2 {
		return nil, fmt.Errorf("%w: coverage needs a height >= 2", tower.ErrInvalidParam)
	}
	shapes, err := stability.AllShapes(q.NumBlocks, res)
	if err != nil {
		return nil, err
	}

	column := "shape_coarse"
	if res == stability.Fine {
		column = "shape_fine"
	}
	where, args := q.where()
	rows, err := c.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM towers"+where+" GROUP BY "+column, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cv := &Coverage{Resolution: res, NumBlocks: q.NumBlocks, Counts: make(map[string]int, len(shapes)), Shapes: shapes}
	for _, s := range shapes {
		cv.Counts[s] = 0
	}
	for rows.Next() {
		var shape string
		var n int
		if err := rows.Scan(&shape, &n); err != nil {
			return nil, err
		}
		cv.Counts[shape] = n
	}
	return cv, rows.Err()
}

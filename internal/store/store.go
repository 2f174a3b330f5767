// Package store is optional durable persistence for serialized DAGs and
// run records, backed by Postgres via bun: one bun.BaseModel struct per
// persisted aggregate, upsert-by-primary-key writes (SaveRun's inside a
// transaction).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/dagml/internal/codec"
	"github.com/smilemakc/dagml/internal/engerr"
	"github.com/smilemakc/dagml/internal/monitor"
)

// Store persists compiled DAG snapshots and their run metrics.
type Store struct {
	db *bun.DB
}

// New opens a Store against dsn, a Postgres connection string.
func New(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &Store{db: bun.NewDB(sqldb, pgdialect.New())}
}

// InitSchema creates the store's tables if they do not already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	models := []any{
		(*DAGModel)(nil),
		(*RunModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return engerr.ExecutionFailure(err, "creating table for %T", model)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.DB.Close() }

// DAGModel persists one compiled DAG snapshot, as produced by
// internal/codec.Encode + Marshal.
type DAGModel struct {
	bun.BaseModel `bun:"table:dags,alias:d"`

	ID        uuid.UUID `bun:"id,pk"`
	Name      string    `bun:"name"`
	Snapshot  []byte    `bun:"snapshot"`
	CreatedAt time.Time `bun:"created_at"`
}

// SaveDAG upserts a named DAG snapshot.
func (s *Store) SaveDAG(ctx context.Context, id uuid.UUID, name string, snap *codec.DAGSnapshot) error {
	b, err := codec.Marshal(snap)
	if err != nil {
		return err
	}
	model := &DAGModel{ID: id, Name: name, Snapshot: b, CreatedAt: time.Now()}
	_, err = s.db.NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
	if err != nil {
		return engerr.ExecutionFailure(err, "saving dag snapshot %s", id)
	}
	return nil
}

// LoadDAG fetches and decodes a previously saved DAG snapshot.
func (s *Store) LoadDAG(ctx context.Context, id uuid.UUID) (*codec.DAGSnapshot, error) {
	model := new(DAGModel)
	if err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, engerr.ExecutionFailure(err, "loading dag snapshot %s", id)
	}
	return codec.Unmarshal(model.Snapshot)
}

// RunModel persists one run's aggregated metrics, as produced by
// internal/monitor.Collector.Finish.
type RunModel struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID         uuid.UUID `bun:"id,pk"`
	DAGID      uuid.UUID `bun:"dag_id"`
	StartedAt  time.Time `bun:"started_at"`
	FinishedAt time.Time `bun:"finished_at"`
	Metrics    []byte    `bun:"metrics,type:jsonb"`
}

// SaveRun persists a run's metrics, associated with the DAG that produced
// them, inside a single RunInTx-wrapped transaction.
func (s *Store) SaveRun(ctx context.Context, runID, dagID uuid.UUID, m monitor.RunMetrics) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		b, err := marshalMetrics(m)
		if err != nil {
			return err
		}
		model := &RunModel{ID: runID, DAGID: dagID, StartedAt: m.StartedAt, FinishedAt: m.FinishedAt, Metrics: b}
		_, err = tx.NewInsert().Model(model).On("CONFLICT (id) DO UPDATE").Exec(ctx)
		if err != nil {
			return engerr.ExecutionFailure(err, "saving run %s", runID)
		}
		return nil
	})
}

func marshalMetrics(m monitor.RunMetrics) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, engerr.ExecutionFailure(err, "marshaling run metrics")
	}
	return b, nil
}

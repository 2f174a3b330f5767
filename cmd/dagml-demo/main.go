// Command dagml-demo builds a small dagml pipeline, prepares it over a
// batch of examples, applies it, and optionally streams execution progress
// over a websocket and persists the compiled DAG.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smilemakc/dagml/internal/codec"
	"github.com/smilemakc/dagml/internal/config"
	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/execengine"
	"github.com/smilemakc/dagml/internal/graph"
	"github.com/smilemakc/dagml/internal/logger"
	"github.com/smilemakc/dagml/internal/monitor"
	"github.com/smilemakc/dagml/internal/objstream"
	"github.com/smilemakc/dagml/internal/prepbuiltin"
	"github.com/smilemakc/dagml/internal/progress"
	"github.com/smilemakc/dagml/internal/store"
	"github.com/smilemakc/dagml/pkg/dagflow"
)

func main() {
	var (
		serve   = flag.Bool("serve", false, "serve progress events over a websocket instead of exiting after one run")
		persist = flag.Bool("persist", false, "save the compiled DAG and run metrics to Postgres (requires DATABASE_DSN)")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel)
	log.Info("starting dagml-demo", "workers", cfg.WorkerCount, "minibatch", cfg.MinibatchSize)

	hub := progress.NewHub()
	go hub.Run()
	defer hub.Stop()

	runUUID := uuid.New()
	runID := runUUID.String()

	if *serve {
		http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Error("websocket upgrade failed", "error", err)
				return
			}
			progress.NewClient(hub, conn, runID).Serve()
		})
		go func() {
			log.Info("serving progress events", "addr", cfg.WebsocketAddr, "run_id", runID)
			if err := http.ListenAndServe(cfg.WebsocketAddr, nil); err != nil {
				log.Error("websocket server stopped", "error", err)
			}
		}()
	}

	collector := monitor.NewCollector()

	pipeline, prepData, applyRows, err := buildPipeline(cfg, hub, runID, collector)
	if err != nil {
		log.Error("failed to compile pipeline", "error", err)
		os.Exit(1)
	}
	log.Info("pipeline compiled", "reduction_rounds", pipeline.ReductionRounds())

	ctx := context.Background()
	if err := pipeline.Prepare(ctx, prepData); err != nil {
		log.Error("prepare failed", "error", err)
		os.Exit(1)
	}
	log.Info("prepare complete")

	out, err := pipeline.Apply(ctx, applyRows)
	if err != nil {
		log.Error("apply failed", "error", err)
		os.Exit(1)
	}
	for i, row := range out {
		fmt.Printf("example %d -> %v\n", i, row)
	}

	metrics := collector.Finish()
	log.Info("run finished", "producers_tracked", len(metrics.Producers))

	if *persist {
		if err := persistRun(ctx, cfg, pipeline, runUUID, metrics); err != nil {
			log.Error("persisting run failed", "error", err)
			os.Exit(1)
		}
		log.Info("run persisted", "dsn_configured", cfg.DatabaseDSN != "")
	}

	if *serve {
		log.Info("serving; press Ctrl+C to exit")
		select {}
	}
}

// buildPipeline wires together a small illustrative DAG: a standard-scaled
// numeric feature and a vocabulary-indexed categorical feature, combined
// by a plain transform. It returns the compiled pipeline plus the
// preparation data and the rows to apply.
func buildPipeline(cfg *config.Config, hub *progress.Hub, runID string, collector *monitor.Collector) (*dagflow.Pipeline, objstream.Reader, [][]any, error) {
	amount := core.NewPlaceholder("amount")
	category := core.NewPlaceholder("category")

	scaled := prepbuiltin.NewStandardScaler("scaled_amount", core.Input[float64](amount))
	vocab := prepbuiltin.NewTopKVocabulary("category_index", 4, core.Input[string](category))

	combined := core.Transform2("combine", false, func(a float64, c int) float64 {
		return a + float64(c)
	}, core.Input[float64](scaled), core.Input[int](vocab))

	b := dagflow.New(amount, category).
		WithOutputs(combined).
		WithOptions(
			execengine.WithWorkerCount(cfg.WorkerCount),
			execengine.WithInferenceMinibatchSize(cfg.MinibatchSize),
		).
		WithObserver(monitor.NewLogObserver()).
		WithObserver(collector.AsObserver()).
		WithObserver(progress.NewObserver(hub, runID))

	pipeline, err := b.Compile()
	if err != nil {
		return nil, nil, nil, err
	}

	writer := objstream.NewWriter(0)
	prepExamples := [][]any{
		{10.0, "gold"},
		{20.0, "silver"},
		{30.0, "gold"},
		{40.0, "bronze"},
	}
	for _, ex := range prepExamples {
		if err := writer.Write(ex); err != nil {
			return nil, nil, nil, err
		}
	}
	reader, err := writer.Reader()
	if err != nil {
		return nil, nil, nil, err
	}

	applyRows := [][]any{
		{15.0, "gold"},
		{25.0, "platinum"},
	}

	return pipeline, reader, applyRows, nil
}

func persistRun(ctx context.Context, cfg *config.Config, pipeline *dagflow.Pipeline, runID uuid.UUID, metrics monitor.RunMetrics) error {
	s := store.New(cfg.DatabaseDSN)
	defer s.Close()

	if err := s.InitSchema(ctx); err != nil {
		return err
	}

	g, err := graph.Build(pipeline.Outputs(), pipeline.Placeholders())
	if err != nil {
		return err
	}
	snap, err := codec.Encode(g.TopoOrder(), g.Nodes(), pipeline.Outputs(), pipeline.Placeholders())
	if err != nil {
		return err
	}

	dagID := uuid.New()
	if err := s.SaveDAG(ctx, dagID, "dagml-demo", snap); err != nil {
		return err
	}

	return s.SaveRun(ctx, runID, dagID, metrics)
}

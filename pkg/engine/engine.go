package engine

import (
	"fmt"

	"github.com/graphmind/codegraph/pkg/config"
	"github.com/graphmind/codegraph/pkg/embedprovider"
	"github.com/graphmind/codegraph/pkg/events"
	"github.com/graphmind/codegraph/pkg/executor"
	"github.com/graphmind/codegraph/pkg/housekeeper"
	"github.com/graphmind/codegraph/pkg/llmprovider"
	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/orchestrator"
	"github.com/graphmind/codegraph/pkg/rerank"
	"github.com/graphmind/codegraph/pkg/storage"
	"github.com/graphmind/codegraph/pkg/tools"
	"github.com/graphmind/codegraph/pkg/txn"
	"github.com/graphmind/codegraph/pkg/vector"
	"github.com/graphmind/codegraph/pkg/vectortxn"
)

// Engine holds every subsystem wired together for one running process.
type Engine struct {
	cfg config.Config

	DB           *storage.DB
	Txns         *txn.Manager
	Vectors      *vector.Engine
	VectorTxns   *vectortxn.Manager
	Catalogue    *tools.Catalogue
	Executor     *executor.Executor
	Orchestrator *orchestrator.Orchestrator
	Housekeeper  *housekeeper.Housekeeper

	broker *events.Broker
}

// Open builds every subsystem from cfg. The caller must call Close when
// done.
func Open(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(log.Config{Level: log.Level(cfg.Logging.Level), JSONOutput: cfg.Logging.JSONOutput})

	broker := events.NewBroker()
	broker.Start()

	db, err := storage.Open(cfg.Storage.Path, 1024)
	if err != nil {
		return nil, err
	}

	vecEngine, err := vector.NewEngine(cfg.Storage.Path, vector.DefaultConfig())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	txnMgr := txn.New(db, broker)
	vecTxnMgr := vectortxn.New(vecEngine, broker)

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}

	reranker := buildReranker(cfg.Rerank, llm)

	catalogue := tools.New(db, vecEngine, embedder, reranker)

	execCfg := executor.DefaultConfig()
	execCfg.ContextWindowTokens = cfg.ContextWindow
	if cfg.Cache.Size > 0 {
		execCfg.CacheCapacity = cfg.Cache.Size
	}
	if !cfg.Cache.Enabled {
		execCfg.CacheCapacity = 1
	}
	ex, err := executor.New(catalogue, execCfg)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(llm, ex)

	hk := housekeeper.New(housekeeper.DefaultConfig(), db, txnMgr, vecTxnMgr, vecEngine, ex.Cache())

	e := &Engine{
		cfg:          cfg,
		DB:           db,
		Txns:         txnMgr,
		Vectors:      vecEngine,
		VectorTxns:   vecTxnMgr,
		Catalogue:    catalogue,
		Executor:     ex,
		Orchestrator: orch,
		Housekeeper:  hk,
		broker:       broker,
	}

	collector := metrics.NewCollector(e)
	collector.Start()

	hk.Start()
	metrics.RegisterComponent("storage", true, "")
	metrics.RegisterComponent("vector", true, "")
	metrics.RegisterComponent("orchestrator", true, "")

	return e, nil
}

// Close stops the housekeeper and event broker and closes storage.
func (e *Engine) Close() error {
	e.Housekeeper.Stop()
	e.VectorTxns.Close()
	e.broker.Stop()

	if err := e.Vectors.Close(); err != nil {
		return err
	}
	return e.DB.Close()
}

// NodeCount implements metrics.Source.
func (e *Engine) NodeCount() (int, error) { return e.DB.NodeCount() }

// EdgeCount implements metrics.Source.
func (e *Engine) EdgeCount() (int, error) { return e.DB.EdgeCount() }

// SnapshotCount implements metrics.Source.
func (e *Engine) SnapshotCount() (int, error) { return e.DB.SnapshotCount() }

// ActiveTransactionCount implements metrics.Source.
func (e *Engine) ActiveTransactionCount() (int, error) { return e.Txns.ActiveCount(), nil }

// VectorSegmentCounts implements metrics.Source.
func (e *Engine) VectorSegmentCounts() (open, sealed int, err error) {
	return e.Vectors.VectorSegmentCounts()
}

func buildEmbedder(cfg config.EmbeddingConfig) (embedprovider.Provider, error) {
	switch cfg.Provider {
	case "", "fake":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 256
		}
		return embedprovider.NewFake(dim), nil
	case "ollama":
		return embedprovider.NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func buildLLM(cfg config.LLMConfig) (llmprovider.Provider, error) {
	switch cfg.Provider {
	case "", "fake":
		return llmprovider.NewFake(), nil
	case "ollama":
		return llmprovider.NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func buildReranker(cfg config.RerankConfig, llm llmprovider.Provider) rerank.Reranker {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Provider {
	case "cross_encoder":
		return rerank.NewCrossEncoderReranker(llm)
	default:
		return rerank.NewTextReranker()
	}
}

// hrrag - Retrieval over HR Records in Go
//
// hrrag builds three retrieval engines over one corpus of synthetic or loaded
// HR records (employees, policies and documents) and lets them be queried and
// compared side by side. Around the engines sit a hybrid searcher that blends
// internal records with external knowledge graph entities, and a grounded
// answering engine backed by a managed enterprise search service.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/hrrag
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/hrrag/config"
//		"github.com/smallnest/hrrag/rag/engine"
//		"github.com/smallnest/hrrag/rag/generator"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		cfg, _ := config.Load("hrrag.toml")
//		suite, _ := engine.FromConfig(ctx, cfg, nil)
//		defer suite.Close()
//
//		ds, _ := generator.New(42).Graph(50, 20)
//		suite.Build(ctx, ds)
//
//		cmp, _ := suite.Compare(ctx, "remote work policy", 5)
//		fmt.Println(engine.BuildContext(cmp, 2, false))
//	}
//
// # Engines
//
//   - ChunkIndex: records are split into overlapping word windows, embedded
//     and ranked by cosine similarity
//   - Collection: one embedded entry per record with metadata filters,
//     similarity search and metadata analytics
//   - PropertyGraph: employees, policies and departments as typed nodes with
//     WORKS_IN, MANAGES and APPLIES_TO edges; keyword search with
//     neighborhood expansion, traversal, shortest paths, community detection
//     and centrality
//
// # Package Structure
//
// config/
// TOML configuration with .env and HRRAG_* environment overrides
//
//	cfg, err := config.Load("hrrag.toml")
//	logger, err := cfg.NewLogger()
//
// log/
// Printf-style leveled logging with standard library, golog and charm backends
//
// rag/
// Record types, text forms, filters and sentinel errors; sub-packages hold
// the engines, embedders, loaders, the data generator and the external
// search capabilities
//
// store/
// Index snapshot persistence: memory, file, sqlite, postgres (pgvector)
// and redis backends
//
// examples/
// Runnable programs that build and query the engines
//
// # Configuration
//
// Settings are read from defaults, then the TOML file, then the environment.
// The embedding provider is one of hash (offline, deterministic), openai or
// ollama; an optional Redis cache sits in front of it. Live knowledge graph
// and enterprise search backends are off unless enabled.
package hrrag

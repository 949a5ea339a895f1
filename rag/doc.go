// Package rag holds the record types, text forms and errors shared by the
// HR retrieval engines.
//
// A Dataset groups employees, policies, documents, departments and explicit
// relationships. Each record has a canonical text form (EmployeeText,
// PolicyText, DocumentText) built from labeled fields joined by
// FieldDelimiter; every engine embeds or matches that same text.
//
// # Engines
//
// The engines live in sub-packages:
//
//   - rag/store: ChunkIndex (chunked embedding index), Collection (one entry
//     per record with metadata filters) and PropertyGraph (typed nodes and
//     relationships with traversal, paths, communities and centrality)
//   - rag/retriever: hybrid search over the internal records and an
//     external entity searcher, merged by a reranker
//   - rag/enterprise: grounded question answering over a managed search
//     backend or its local mirror
//   - rag/kg: knowledge graph entity lookup with caching and rate limiting
//   - rag/engine: Suite, which builds all of the above from one dataset
//
// Supporting packages provide embedders (rag/embedder), word window
// chunking (rag/splitter), file loaders (rag/loader) and a deterministic
// synthetic data generator (rag/generator).
//
// # Quick Start
//
//	ds, _ := generator.New(42).Graph(50, 20)
//
//	suite, _ := engine.NewSuite(embedder.NewHashEmbedder(384), engine.Options{})
//	if _, err := suite.Build(ctx, ds); err != nil {
//		return err
//	}
//
//	cmp, _ := suite.Compare(ctx, "vacation policy", 5)
//	fmt.Println(engine.BuildContext(cmp, 2, true))
//
// # Errors
//
// Engines report failures with the sentinel errors in this package, wrapped
// with context: ErrNotBuilt, ErrEmptyCorpus, ErrEntityNotFound, ErrNoPath,
// ErrInvalidArgument and ErrInvalidConfig. Test with errors.Is.
//
// # LangChain
//
// LangChainEmbedder and LangChainDocumentLoader adapt langchaingo
// embedders and document loaders to the interfaces used here.
package rag // import "github.com/smallnest/hrrag/rag"

// Package kg provides external knowledge graph search for HR queries.
//
// Two searchers implement rag.ExternalSearcher: MockSearcher answers from a
// fixed set of HR concepts without network access, and GoogleSearcher calls
// the Google Knowledge Graph Search API. Client wraps either one with a
// response cache, usage statistics and a fallback to the mock when the live
// service fails.
//
//	live, err := kg.NewGoogleSearcher(ctx, apiKey, kg.WithMinConfidence(0.1))
//	client := kg.NewClient(live)
//	results, err := client.Search(ctx, "employment law", 5)
package kg

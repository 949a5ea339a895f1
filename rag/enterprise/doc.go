// Package enterprise provides the enterprise search capability: a managed
// data store of HR documents, a search backend over it and an answer engine
// that assembles grounded responses with sources and citations.
//
// Two backends are available. MockDataStore searches an in-process copy of
// the documents and needs no credentials. VertexSearcher queries a Vertex AI
// Search serving config through the Discovery Engine API.
//
//	eng := enterprise.NewEngine()
//	if _, err := eng.CreateDataStore(ctx, dataset); err != nil {
//		return err
//	}
//	res := eng.Query(ctx, enterprise.QueryRequest{Query: "vacation policy"})
package enterprise

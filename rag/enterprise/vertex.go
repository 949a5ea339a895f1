package enterprise

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smallnest/hrrag/log"
	"github.com/smallnest/hrrag/rag"
	discoveryengine "google.golang.org/api/discoveryengine/v1"
	"google.golang.org/api/option"
)

// SourceVertex tags results produced by VertexSearcher
const SourceVertex = "vertex_ai_search"

// VertexConfig locates a Vertex AI Search serving config
type VertexConfig struct {
	ProjectID     string
	Location      string // default "global"
	Collection    string // default "default_collection"
	EngineID      string // default "hr-search-engine"
	ServingConfig string // default "default_search"
}

// ServingConfigName returns the full resource name searched by VertexSearcher
func (c VertexConfig) ServingConfigName() string {
	return fmt.Sprintf("projects/%s/locations/%s/collections/%s/engines/%s/servingConfigs/%s",
		c.ProjectID,
		rag.Or(c.Location, "global"),
		rag.Or(c.Collection, "default_collection"),
		rag.Or(c.EngineID, "hr-search-engine"),
		rag.Or(c.ServingConfig, "default_search"),
	)
}

// VertexSearcher searches a Vertex AI Search engine
type VertexSearcher struct {
	svc           *discoveryengine.Service
	servingConfig string
	logger        log.Logger
}

// NewVertexSearcher creates a searcher. Credentials come from opts, for
// example option.WithCredentialsFile or option.WithTokenSource.
func NewVertexSearcher(ctx context.Context, cfg VertexConfig, logger log.Logger, opts ...option.ClientOption) (*VertexSearcher, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: vertex project id is required", rag.ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	svc, err := discoveryengine.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create discovery engine service: %w", err)
	}

	return &VertexSearcher{
		svc:           svc,
		servingConfig: cfg.ServingConfigName(),
		logger:        logger,
	}, nil
}

// Search implements rag.ExternalSearcher. Results keep the engine's order;
// confidence decays with rank as 1/(1+rank).
func (v *VertexSearcher) Search(ctx context.Context, query string, limit int) ([]rag.ExternalResult, error) {
	req := &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest{
		Query: query,
	}
	if limit > 0 {
		req.PageSize = int64(limit)
	}

	resp, err := v.svc.Projects.Locations.Collections.Engines.ServingConfigs.
		Search(v.servingConfig, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vertex search %q: %w", query, err)
	}

	results := make([]rag.ExternalResult, 0, len(resp.Results))
	for i, r := range resp.Results {
		if r.Document == nil {
			continue
		}
		results = append(results, documentResult(r.Document, i))
	}
	v.logger.Debug("vertex search %q: %d results", query, len(results))
	return results, nil
}

func documentResult(doc *discoveryengine.GoogleCloudDiscoveryengineV1Document, rank int) rag.ExternalResult {
	fields := map[string]any{}
	if len(doc.StructData) > 0 {
		_ = json.Unmarshal(doc.StructData, &fields)
	}

	content := rag.MetadataString(fields, "content")
	if content == "" && len(doc.DerivedStructData) > 0 {
		var derived struct {
			Snippets []struct {
				Snippet string `json:"snippet"`
			} `json:"snippets"`
		}
		if err := json.Unmarshal(doc.DerivedStructData, &derived); err == nil && len(derived.Snippets) > 0 {
			content = derived.Snippets[0].Snippet
		}
	}

	meta := make(map[string]any, len(fields))
	for k, val := range fields {
		if k != "title" && k != "content" {
			meta[k] = val
		}
	}
	meta["rank"] = rank + 1

	return rag.ExternalResult{
		ID:          doc.Id,
		Name:        rag.Or(rag.MetadataString(fields, "title"), doc.Id),
		Description: content,
		Confidence:  1 / float64(rank+1),
		Source:      SourceVertex,
		Metadata:    meta,
	}
}

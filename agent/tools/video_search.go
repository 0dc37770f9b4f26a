package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/vector"
)

const defaultVideoResults = 3

// VideoSearchTool probes the visual descriptor space. The video space has
// its own embedding model and dimensionality, so it is never mixed with
// the text sets.
type VideoSearchTool struct {
	rt *Runtime
}

func NewVideoSearchTool(rt *Runtime) *VideoSearchTool {
	return &VideoSearchTool{rt: rt}
}

func (t *VideoSearchTool) Name() string { return "search_videos_semantically" }

func (t *VideoSearchTool) Description() string {
	return "Semantic search over talk video content using the visual embedding space. Finds talks whose video footage matches the query, independent of what was said."
}

type videoSearchInput struct {
	Query string `json:"query"`
	TopN  int    `json:"top_n,omitempty"`
}

func (t *VideoSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "Natural language description of the visual content, e.g. 'live demo of a dashboard'"},
			"top_n": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxK, "default": defaultVideoResults, "description": "Number of most similar videos to return"},
		},
		"required": []string{"query"},
	}
}

func (t *VideoSearchTool) Run(ctx context.Context, inputJSON string) (string, error) {
	return t.rt.run(ctx, t.Name(), func(ctx context.Context, eng *retrieval.Engine) (any, error) {
		var in videoSearchInput
		if err := decode(inputJSON, &in); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Query) == "" {
			return nil, retrieval.E(retrieval.KindValidation, "query is required")
		}
		k := in.TopN
		if k <= 0 {
			k = defaultVideoResults
		}
		if k > maxK {
			k = maxK
		}

		results, err := eng.Search(ctx, &retrieval.Request{
			Query: in.Query,
			Sets:  []string{vector.SetVideo},
			K:     k,
		})
		if err != nil {
			return nil, err
		}

		return map[string]interface{}{
			"videos":        toScoredViews(results),
			"totalFound":    len(results),
			"searchSummary": fmt.Sprintf("top %d videos for %q", k, in.Query),
		}, nil
	})
}

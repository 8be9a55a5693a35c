package suggest

import (
	"context"
	"errors"

	"wikimind/internal/common/database"
	apperrors "wikimind/internal/common/errors"
)

// Searcher is the slice of the Elasticsearch client used for suggestions.
type Searcher interface {
	Search(ctx context.Context, index string, query map[string]interface{}, dst interface{}) error
}

// TitleDocument is the indexed shape of one topic title.
type TitleDocument struct {
	Title    string `json:"title"`
	Language string `json:"language"`
	Rank     int    `json:"rank,omitempty"`
}

// TitleMapping is the index mapping expected by Elasticsearch.
var TitleMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"title":    map[string]interface{}{"type": "text"},
			"language": map[string]interface{}{"type": "keyword"},
			"rank":     map[string]interface{}{"type": "integer"},
		},
	},
}

// Elasticsearch completes titles from a locally indexed title list.
type Elasticsearch struct {
	client Searcher
	index  string
	max    int
	logger Logger
}

func NewElasticsearch(client Searcher, index string, maxResults int, log Logger) *Elasticsearch {
	return &Elasticsearch{client: client, index: index, max: limit(maxResults), logger: log}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source TitleDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *Elasticsearch) Suggest(ctx context.Context, partial, languageCode string) ([]string, error) {
	partial = normalize(partial)
	if partial == "" {
		return []string{}, nil
	}

	query := map[string]interface{}{
		"size":    e.max,
		"_source": []string{"title", "language"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"match_phrase_prefix": map[string]interface{}{
							"title": map[string]interface{}{"query": partial},
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"language": languageCode}},
				},
			},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"rank": map[string]interface{}{"order": "desc", "unmapped_type": "integer"}}},
	}

	var resp searchResponse
	if err := e.client.Search(ctx, e.index, query, &resp); err != nil {
		var respErr *database.ResponseError
		if errors.As(err, &respErr) {
			if respErr.StatusCode == 429 || respErr.StatusCode >= 502 {
				return nil, apperrors.NewNetworkTimeoutError("elasticsearch", err)
			}
			return nil, apperrors.NewUnknownError("elasticsearch rejected the suggestion query", err)
		}
		return nil, classify("elasticsearch", err)
	}

	titles := make([]string, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		titles = append(titles, h.Source.Title)
	}
	out := dedupe(titles, e.max)
	e.logger.Debug("suggestions fetched", map[string]interface{}{
		"partial":  partial,
		"language": languageCode,
		"count":    len(out),
		"index":    e.index,
	})
	return out, nil
}

package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	apperrors "wikimind/internal/common/errors"
	apphttp "wikimind/internal/common/http"
)

// Wikipedia queries the opensearch endpoint of the MediaWiki API.
type Wikipedia struct {
	baseURL string
	max     int
	client  *apphttp.Client
	logger  Logger
}

// NewWikipedia takes the same base URL format as the knowledge source.
func NewWikipedia(baseURL, userAgent string, timeout time.Duration, maxResults int, log Logger) *Wikipedia {
	return &Wikipedia{
		baseURL: baseURL,
		max:     limit(maxResults),
		client:  apphttp.NewClient(timeout).WithUserAgent(userAgent),
		logger:  log,
	}
}

func (w *Wikipedia) Suggest(ctx context.Context, partial, languageCode string) ([]string, error) {
	partial = normalize(partial)
	if partial == "" {
		return []string{}, nil
	}

	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("format", "json")
	q.Set("namespace", "0")
	q.Set("limit", strconv.Itoa(w.max))
	q.Set("search", partial)

	// [query, [titles], [descriptions], [urls]]
	var raw []json.RawMessage
	endpoint := fmt.Sprintf(w.baseURL, url.PathEscape(languageCode))
	if err := w.client.GetJSON(ctx, endpoint, q, &raw); err != nil {
		return nil, classify("wikipedia", err)
	}
	if len(raw) < 2 {
		return nil, apperrors.NewUnknownError("wikipedia opensearch response is malformed", nil)
	}

	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, apperrors.NewUnknownError("wikipedia opensearch titles are malformed", err)
	}

	out := dedupe(titles, w.max)
	w.logger.Debug("suggestions fetched", map[string]interface{}{
		"partial":  partial,
		"language": languageCode,
		"count":    len(out),
	})
	return out, nil
}

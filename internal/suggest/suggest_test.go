package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikimind/internal/common/config"
	"wikimind/internal/common/database"
	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/common/logger"
)

// ==========================
// Wikipedia opensearch
// ==========================

func opensearchServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "opensearch", q.Get("action"))
		assert.Equal(t, "5", q.Get("limit"))

		switch q.Get("search") {
		case "Alb":
			fmt.Fprint(w, `["Alb",["Albert Einstein","Albania","Albert Einstein","Alberta","Albuquerque, New Mexico","Albert Camus","Albedo"],[],[]]`)
		case "Busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "Odd":
			fmt.Fprint(w, `["Odd"]`)
		default:
			fmt.Fprintf(w, `[%q,[],[],[]]`, q.Get("search"))
		}
	}))
}

func TestWikipediaSuggest_CapsAndDedupes(t *testing.T) {
	var calls int32
	server := opensearchServer(t, &calls)
	defer server.Close()

	svc := NewWikipedia(server.URL+"/%s/w/api.php", "wikimind-test", time.Second, 10, logger.NewTestLogger(t))
	got, err := svc.Suggest(context.Background(), "Alb", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"Albert Einstein", "Albania", "Alberta", "Albuquerque, New Mexico", "Albert Camus"}, got)
}

func TestWikipediaSuggest_EmptyInputMakesNoCall(t *testing.T) {
	var calls int32
	server := opensearchServer(t, &calls)
	defer server.Close()

	svc := NewWikipedia(server.URL+"/%s/w/api.php", "wikimind-test", time.Second, 5, logger.NewTestLogger(t))
	for _, in := range []string{"", "   "} {
		got, err := svc.Suggest(context.Background(), in, "en")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestWikipediaSuggest_NoMatches(t *testing.T) {
	var calls int32
	server := opensearchServer(t, &calls)
	defer server.Close()

	svc := NewWikipedia(server.URL+"/%s/w/api.php", "wikimind-test", time.Second, 5, logger.NewTestLogger(t))
	got, err := svc.Suggest(context.Background(), "Qqqzx", "en")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWikipediaSuggest_Failures(t *testing.T) {
	var calls int32
	server := opensearchServer(t, &calls)
	defer server.Close()

	svc := NewWikipedia(server.URL+"/%s/w/api.php", "wikimind-test", time.Second, 5, logger.NewTestLogger(t))

	_, err := svc.Suggest(context.Background(), "Busy", "en")
	assert.Equal(t, apperrors.ErrCodeNetworkTimeout, apperrors.CodeOf(err))

	_, err = svc.Suggest(context.Background(), "Odd", "en")
	assert.Equal(t, apperrors.ErrCodeUnknown, apperrors.CodeOf(err))
}

// ==========================
// Elasticsearch
// ==========================

func esServer(t *testing.T, titles []string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "/wikimind-titles/_search", r.URL.Path)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, float64(5), body["size"])

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"type":"search_phase_execution_exception"},"status":`+fmt.Sprint(status)+`}`)
			return
		}

		hits := make([]map[string]interface{}, 0, len(titles))
		for _, title := range titles {
			hits = append(hits, map[string]interface{}{
				"_index":  "wikimind-titles",
				"_source": map[string]interface{}{"title": title, "language": "en"},
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"took": 1,
			"hits": map[string]interface{}{"hits": hits},
		})
	}))
}

func newESService(t *testing.T, url string) *Elasticsearch {
	client, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: url})
	require.NoError(t, err)
	return NewElasticsearch(client, "wikimind-titles", 5, logger.NewTestLogger(t))
}

func TestElasticsearchSuggest_ReturnsTitles(t *testing.T) {
	server := esServer(t, []string{"Mercury (planet)", "Mercury (element)", "Mercury Prize"}, http.StatusOK)
	defer server.Close()

	got, err := newESService(t, server.URL).Suggest(context.Background(), "Merc", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mercury (planet)", "Mercury (element)", "Mercury Prize"}, got)
}

func TestElasticsearchSuggest_EmptyInput(t *testing.T) {
	got, err := NewElasticsearch(nil, "wikimind-titles", 5, logger.NewTestLogger(t)).Suggest(context.Background(), "", "en")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestElasticsearchSuggest_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   apperrors.ErrorCode
	}{
		{http.StatusServiceUnavailable, apperrors.ErrCodeNetworkTimeout},
		{http.StatusBadRequest, apperrors.ErrCodeUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := esServer(t, nil, tt.status)
			defer server.Close()

			_, err := newESService(t, server.URL).Suggest(context.Background(), "Merc", "en")
			assert.Equal(t, tt.want, apperrors.CodeOf(err))
		})
	}
}

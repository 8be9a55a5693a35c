// Package knowledge resolves a topic name to page text and classifies every failure into the
// AMBIGUOUS / NOT_FOUND / NETWORK_TIMEOUT / UNKNOWN taxonomy.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "wikimind/internal/common/errors"
	apphttp "wikimind/internal/common/http"
)

// Source resolves a topic in a retrieval language to plain text.
type Source interface {
	Resolve(ctx context.Context, title, languageCode string) (string, error)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type WikipediaConfig struct {
	// BaseURL is a format string with one %s for the language code.
	BaseURL          string
	UserAgent        string
	Timeout          time.Duration
	MaxCandidates    int
	ExtractSentences int
}

// Wikipedia reads page introductions through the MediaWiki Action API.
type Wikipedia struct {
	config WikipediaConfig
	client *apphttp.Client
	logger Logger
}

func NewWikipedia(cfg WikipediaConfig, log Logger) *Wikipedia {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	return &Wikipedia{
		config: cfg,
		client: apphttp.NewClient(cfg.Timeout).WithUserAgent(cfg.UserAgent),
		logger: log,
	}
}

type queryResponse struct {
	Query struct {
		Pages []page `json:"pages"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type page struct {
	PageID    int               `json:"pageid"`
	Title     string            `json:"title"`
	Missing   bool              `json:"missing"`
	Invalid   bool              `json:"invalid"`
	Extract   string            `json:"extract"`
	PageProps map[string]string `json:"pageprops"`
	Links     []struct {
		NS    int    `json:"ns"`
		Title string `json:"title"`
	} `json:"links"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (w *Wikipedia) endpoint(languageCode string) string {
	return fmt.Sprintf(w.config.BaseURL, url.PathEscape(languageCode))
}

func (w *Wikipedia) Resolve(ctx context.Context, title, languageCode string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.NewNotFoundError(title, languageCode)
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("prop", "extracts|pageprops")
	q.Set("ppprop", "disambiguation")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")
	q.Set("titles", title)
	if w.config.ExtractSentences > 0 {
		q.Set("exsentences", strconv.Itoa(w.config.ExtractSentences))
	} else {
		q.Set("exintro", "1")
	}

	var resp queryResponse
	if err := w.client.GetJSON(ctx, w.endpoint(languageCode), q, &resp); err != nil {
		return "", w.classify(err)
	}
	if resp.Error != nil {
		return "", apperrors.NewUnknownError(fmt.Sprintf("wikipedia api error %s: %s", resp.Error.Code, resp.Error.Info), nil)
	}
	if len(resp.Query.Pages) == 0 {
		return "", apperrors.NewNotFoundError(title, languageCode)
	}

	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return "", apperrors.NewNotFoundError(title, languageCode)
	}
	if _, ok := p.PageProps["disambiguation"]; ok {
		return "", apperrors.NewAmbiguousError(p.Title, w.candidates(ctx, p.Title, languageCode))
	}

	text := strings.TrimSpace(p.Extract)
	if text == "" {
		return "", apperrors.NewNotFoundError(title, languageCode)
	}

	w.logger.Info("topic resolved", map[string]interface{}{
		"title":    p.Title,
		"language": languageCode,
		"chars":    len(text),
	})
	return text, nil
}

// candidates lists article links of a disambiguation page. Failures are logged and yield no
// candidates; the AMBIGUOUS classification stands either way.
func (w *Wikipedia) candidates(ctx context.Context, title, languageCode string) []string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("prop", "links")
	q.Set("plnamespace", "0")
	q.Set("pllimit", strconv.Itoa(w.config.MaxCandidates))
	q.Set("titles", title)

	var resp queryResponse
	if err := w.client.GetJSON(ctx, w.endpoint(languageCode), q, &resp); err != nil {
		w.logger.Warn("failed to list disambiguation candidates", map[string]interface{}{
			"title": title,
			"error": err.Error(),
		})
		return []string{}
	}

	out := []string{}
	for _, p := range resp.Query.Pages {
		for _, l := range p.Links {
			if len(out) == w.config.MaxCandidates {
				return out
			}
			out = append(out, l.Title)
		}
	}
	return out
}

// classify maps a transport or HTTP failure into the knowledge taxonomy.
func (w *Wikipedia) classify(err error) error {
	var decodeErr *apphttp.DecodeError
	switch {
	case apphttp.IsTimeout(err), errors.Is(err, context.Canceled):
		return apperrors.NewNetworkTimeoutError("wikipedia", err)
	case apphttp.IsUnavailableStatus(apphttp.StatusCode(err)):
		return apperrors.NewNetworkTimeoutError("wikipedia", err)
	case apphttp.StatusCode(err) != 0:
		return apperrors.NewUnknownError("wikipedia returned an unexpected status", err)
	case errors.As(err, &decodeErr):
		return apperrors.NewUnknownError("wikipedia returned an unreadable body", err)
	case apphttp.IsTransport(err):
		return apperrors.NewNetworkTimeoutError("wikipedia", err)
	default:
		return apperrors.NewUnknownError("wikipedia request failed", err)
	}
}

// Package suggest completes partially typed topic names.
package suggest

import (
	"context"
	"errors"
	"strings"

	apperrors "wikimind/internal/common/errors"
	apphttp "wikimind/internal/common/http"
)

// MaxResults is the upper bound on suggestions returned for one query.
const MaxResults = 5

// Service returns up to MaxResults topic names starting with a partial query.
type Service interface {
	Suggest(ctx context.Context, partial, languageCode string) ([]string, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func limit(n int) int {
	if n <= 0 || n > MaxResults {
		return MaxResults
	}
	return n
}

// normalize trims the query; an empty result means no backend call is made.
func normalize(partial string) string {
	return strings.TrimSpace(partial)
}

// dedupe keeps the first occurrence of each title, drops blanks and stops at n.
func dedupe(titles []string, n int) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}

func classify(service string, err error) error {
	var decodeErr *apphttp.DecodeError
	switch {
	case apphttp.IsTimeout(err), errors.Is(err, context.Canceled):
		return apperrors.NewNetworkTimeoutError(service, err)
	case apphttp.IsUnavailableStatus(apphttp.StatusCode(err)):
		return apperrors.NewNetworkTimeoutError(service, err)
	case errors.As(err, &decodeErr):
		return apperrors.NewUnknownError(service+" returned an unreadable body", err)
	case apphttp.StatusCode(err) == 0 && apphttp.IsTransport(err):
		return apperrors.NewNetworkTimeoutError(service, err)
	default:
		return apperrors.NewUnknownError(service+" suggestion request failed", err)
	}
}

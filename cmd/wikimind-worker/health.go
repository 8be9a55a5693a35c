package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wikimind/internal/inference"
)

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type engineStatus interface {
	State() inference.State
	Backend() string
}

// healthMux serves /health, /ready and /metrics. Readiness requires the Zeebe gateway and, when
// requireModel is set, a loaded inference model.
func healthMux(zeebe healthChecker, engine engineStatus, requireModel bool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]interface{}{
			"status":  "ready",
			"engine":  engine.State().String(),
			"backend": engine.Backend(),
			"time":    time.Now().Format(time.RFC3339),
		}

		if err := zeebe.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "not ready"
			body["zeebe"] = err.Error()
		}
		if requireModel && engine.State() != inference.StateReady {
			status = http.StatusServiceUnavailable
			body["status"] = "not ready"
		}

		writeJSON(w, status, body)
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

package main

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/metrics"
	"github.com/rickgao/marketstream/internal/recorder"
)

type streamState interface {
	Name() string
	State() connection.State
}

type recorderStats interface {
	Stats() recorder.Stats
}

// createHandler serves /health and the metrics endpoint.
func createHandler(metricsPath string, st streamState, rec recorderStats, g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler(g))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		state := st.State()
		health.Components["stream"] = map[string]string{
			"name":  st.Name(),
			"state": state.String(),
		}
		if state != connection.StateConnected {
			health.Status = "degraded"
		}

		stats := rec.Stats()
		health.Components["recorder"] = stats
		if stats.Errors > 0 && stats.Written == 0 {
			health.Status = "unhealthy"
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		sonic.ConfigStd.NewEncoder(w).Encode(health)
	})

	return mux
}

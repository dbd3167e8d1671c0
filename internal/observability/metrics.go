package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/scrapeflow/webscrape/internal/engine"
)

// Metrics serves a running engine's Stats snapshot in Prometheus text
// exposition format, alongside a plain /health endpoint.
type Metrics struct {
	eng    *engine.Engine
	logger *slog.Logger
}

func NewMetrics(eng *engine.Engine, logger *slog.Logger) *Metrics {
	return &Metrics{
		eng:    eng,
		logger: logger.With("component", "metrics"),
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	snap := m.eng.Stats()
	metrics := []struct {
		name  string
		help  string
		value float64
	}{
		{"webscrape_records_success_total", "Records successfully fetched and extracted", float64(snap.Success)},
		{"webscrape_records_errors_total", "Fetch or extraction errors", float64(snap.Errors)},
		{"webscrape_records_skipped_total", "Records skipped (duplicate or empty)", float64(snap.Skipped)},
		{"webscrape_records_blocked_total", "Requests blocked by robots.txt", float64(snap.Blocked)},
		{"webscrape_entries_total", "Entries written to the sink", float64(snap.Entries)},
		{"webscrape_throughput_per_second", "Successful records per second since run start", snap.PerSecond},
		{"webscrape_failed_urls_total", "URLs that exhausted retries or failed terminally", float64(len(snap.FailedURLs))},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", metric.name)
		fmt.Fprintf(w, "%s %v\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

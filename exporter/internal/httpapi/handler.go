package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/catalog"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/collector"
)

// Scraper runs scrapes and reports collector state. *collector.Collector
// implements it.
type Scraper interface {
	Scrape(ctx context.Context) *collector.Result
	Status() collector.Status
}

// Handler serves the exporter endpoints.
type Handler struct {
	scraper Scraper
	logger  *slog.Logger
	router  *chi.Mux
}

// New returns the exporter's HTTP handler. self serves the exporter's own
// metrics and may be nil.
func New(s Scraper, self http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		scraper: s,
		logger:  logger.With("component", "http"),
		router:  chi.NewRouter(),
	}

	h.router.Use(middleware.Recoverer)
	h.router.Use(h.logRequests)

	h.router.Get("/", h.index)
	h.router.Get("/metrics", h.metrics)
	h.router.Get("/healthz", h.health)
	if self != nil {
		h.router.Method(http.MethodGet, "/exporter/metrics", self)
	}
	h.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

const indexPage = `<html>
<head><title>KDP Exporter</title></head>
<body>
<h1>KDP Exporter</h1>
<p><a href="/metrics">Metrics</a></p>
<p><a href="/healthz">Health</a></p>
<p><a href="/exporter/metrics">Exporter metrics</a></p>
</body>
</html>
`

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

// metrics returns GET /metrics: one full scrape rendered as exposition text.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	res := h.scraper.Scrape(r.Context())

	var buf bytes.Buffer
	if err := res.Set.Write(&buf); err != nil {
		h.logger.Error("render scrape", "scrape_id", res.ID, "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", catalog.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// health returns GET /healthz. It never triggers a scrape.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	st := h.scraper.Status()
	resp := HealthResponse{
		Status:      "ok",
		Resource:    st.Resource,
		ResourceID:  st.ResourceID,
		Resolved:    st.Resolved,
		FailedSteps: st.FailedSteps,
	}
	if !st.LastScrape.IsZero() {
		last := st.LastScrape
		resp.LastScrape = &last
	}
	if !st.Resolved {
		resp.Status = "unresolved"
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

// statusRecorder captures the status code and body size for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		h.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"size", rec.size,
			"elapsed", time.Since(start),
		)
	})
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

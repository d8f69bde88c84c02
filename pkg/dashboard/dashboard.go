// Package dashboard implements the operator HTTP surface: health,
// queue counters plus last-N artifacts, and a retry-errors recovery
// endpoint.
package dashboard

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/log"
	"github.com/tepantlatia/ingestor/pkg/metrics"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

const defaultRecentLimit = 10

// Dashboard serves the read-only surface over a shared store handle.
// It never mutates queue entries except via RetryErrors.
type Dashboard struct {
	store  storage.Store
	ready  bool
	logger zerolog.Logger
}

// New returns a Dashboard backed by store. SetReady(true) must be
// called once the store handle is fully initialized.
func New(store storage.Store) *Dashboard {
	return &Dashboard{
		store:  store,
		logger: log.WithComponent("dashboard"),
	}
}

// SetReady marks the dashboard ready to serve / requests.
func (d *Dashboard) SetReady(ready bool) {
	d.ready = ready
}

// Router builds the chi router exposing /health, /, and /retry-errors.
func (d *Dashboard) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", d.handleHealth)
	r.Get("/", d.handleIndex)
	r.Post("/retry-errors", d.handleRetryErrors)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.DashboardRequestsTotal.WithLabelValues("/health", "200").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !d.ready {
		metrics.DashboardRequestsTotal.WithLabelValues("/", "503").Inc()
		w.Header().Set("Refresh", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("store not ready yet"))
		return
	}

	ctx := r.Context()
	filter := domain.RecentFilter{
		Epoch:   r.URL.Query().Get("epoch"),
		Subject: r.URL.Query().Get("subject"),
		Limit:   defaultRecentLimit,
	}

	counters, err := d.store.Counters(ctx, storage.QueuePrimary)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to load counters")
		metrics.DashboardRequestsTotal.WithLabelValues("/", "500").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	recent, err := d.store.FindRecentArtifacts(ctx, filter)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to load recent artifacts")
		metrics.DashboardRequestsTotal.WithLabelValues("/", "500").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.DashboardRequestsTotal.WithLabelValues("/", "200").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTemplate.Execute(w, indexView{
		Counters: counters,
		Recent:   recent,
		Epoch:    filter.Epoch,
		Subject:  filter.Subject,
	})
}

func (d *Dashboard) handleRetryErrors(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	ctx := r.Context()
	count, err := d.store.RetryErrors(ctx, limit)
	if err != nil {
		metrics.DashboardRequestsTotal.WithLabelValues("/retry-errors", "500").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.DashboardRequestsTotal.WithLabelValues("/retry-errors", "200").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"retried":` + strconv.Itoa(count) + `}`))
}

type indexView struct {
	Counters domain.Counters
	Recent   []*domain.Artifact
	Epoch    string
	Subject  string
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><title>tepantlatia ingestion worker</title></head>
<body>
<h1>Queue counters</h1>
<table border="1" cellpadding="4">
<tr><th>Total</th><th>Pending</th><th>Processing</th><th>Completed</th><th>Error</th></tr>
<tr><td>{{.Counters.Total}}</td><td>{{.Counters.Pending}}</td><td>{{.Counters.Processing}}</td><td>{{.Counters.Completed}}</td><td>{{.Counters.Error}}</td></tr>
</table>

<h2>Filter</h2>
<form method="get">
<input type="text" name="epoch" placeholder="epoch" value="{{.Epoch}}">
<input type="text" name="subject" placeholder="subject" value="{{.Subject}}">
<button type="submit">Filter</button>
</form>

<h2>Last {{len .Recent}} artifacts</h2>
<table border="1" cellpadding="4">
<tr><th>Key</th><th>Title</th><th>Epoch</th><th>Subject</th><th>Updated</th></tr>
{{range .Recent}}
<tr><td>{{.Key}}</td><td>{{.Title}}</td><td>{{.Epoch}}</td><td>{{.Subject}}</td><td>{{.UpdatedAt}}</td></tr>
{{end}}
</table>
</body>
</html>
`))

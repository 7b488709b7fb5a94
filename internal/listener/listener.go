package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-job-catalog/internal/catalog"
	"go.uber.org/zap"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Catalog is implemented by all job catalog backends.
type Catalog interface {
	Jobs(ctx context.Context, q catalog.Query) (*catalog.Page, error)
	Job(ctx context.Context, id int64) (*catalog.Job, error)
}

// Options configure the pagination of the HTTP API.
type Options struct {
	PerPage    int // PerPage is used if a request doesn't specify per_page.
	MaxPerPage int // MaxPerPage caps the per_page of all requests.
}

type Listener struct {
	address string
	catalog Catalog
	opts    Options
	logger  *logging.Logger
	mux     http.ServeMux
}

func NewListener(address string, c Catalog, opts Options, logger *logging.Logger) *Listener {
	l := &Listener{address: address, catalog: c, opts: opts, logger: logger}
	l.mux.HandleFunc("GET /jobs", l.ListJobs)
	l.mux.HandleFunc("GET /jobs/{id}", l.GetJob)
	l.mux.HandleFunc("GET /health", l.Health)
	return l
}

// Run starts the HTTP server and blocks until ctx is done or the server fails.
func (l *Listener) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        l.address,
		Handler:     l,
		ReadTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		l.logger.Infof("Starting listener on http://%s", l.address)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		l.logger.Info("Stopping listener")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return ctx.Err()
	}
}

// ServeHTTP implements the http.Handler interface.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.logger.Debugw("Handling request", zap.String("method", r.Method), zap.String("uri", r.RequestURI),
		zap.String("remote", r.RemoteAddr))
	l.mux.ServeHTTP(w, r)
}

// ListJobs serves a single page of the jobs matching the filter query parameter.
//
// Problems within the filter expression never fail the request. They're logged instead and the affected
// fragments just don't restrict the result.
func (l *Listener) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	perPage, err := positiveParam(query, "per_page", l.opts.PerPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, err := positiveParam(query, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	filterExpr := query.Get("filter")
	result, err := l.catalog.Jobs(r.Context(), catalog.Query{
		Filter:  filterExpr,
		Page:    page,
		PerPage: min(perPage, l.opts.MaxPerPage),
	})
	if err != nil {
		l.logger.Errorw("Cannot fetch jobs", zap.String("filter", filterExpr), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("cannot fetch jobs"))
		return
	}

	if result.Filter != nil {
		for _, d := range result.Filter.Diagnostics {
			l.logger.Debugw("Filter fragment does not restrict the result",
				zap.String("filter", filterExpr), zap.String("kind", string(d.Kind)),
				zap.String("fragment", d.Fragment), zap.Int("pos", d.Pos))
		}
	}

	result.SetURLs(requestURL(r))
	writeJSON(w, http.StatusOK, result)
}

// GetJob serves a single job including all its relations.
func (l *Listener) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such job %q", r.PathValue("id")))
		return
	}

	job, err := l.catalog.Job(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	} else if err != nil {
		l.logger.Errorw("Cannot fetch job", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("cannot fetch job"))
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (l *Listener) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// positiveParam returns the named query parameter as positive integer or def if it's absent or empty.
func positiveParam(query url.Values, name string, def int) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}

	return v, nil
}

// requestURL reconstructs the absolute URL the request was sent to.
func requestURL(r *http.Request) *url.URL {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}

	return &u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Assert interface compliance.
var (
	_ http.Handler = (*Listener)(nil)
	_ Catalog      = (*catalog.Store)(nil)
	_ Catalog      = (*catalog.Memory)(nil)
)

package listener

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/icinga/icinga-job-catalog/internal/catalog"
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"github.com/icinga/icinga-job-catalog/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestServer(t *testing.T, c Catalog) *httptest.Server {
	logs := testutils.NewTestLogging(t)
	l := NewListener("", c, Options{PerPage: 2, MaxPerPage: 3}, logs.GetChildLogger("listener"))

	srv := httptest.NewServer(l)
	t.Cleanup(srv.Close)

	return srv
}

func newTestCatalog(t *testing.T) *catalog.Memory {
	fixtures, err := catalog.LoadFixtures("../catalog/testdata/jobs.yml")
	require.NoError(t, err)

	m, err := catalog.NewMemoryFromFixtures(fixtures, filter.ParseOptions{})
	require.NoError(t, err)

	return m
}

// pageResponse mirrors the JSON encoding of catalog.Page.
type pageResponse struct {
	CurrentPage int              `json:"current_page"`
	Data        []map[string]any `json:"data"`
	From        *int             `json:"from"`
	LastPage    int              `json:"last_page"`
	NextPageURL *string          `json:"next_page_url"`
	PerPage     int              `json:"per_page"`
	To          *int             `json:"to"`
	Total       int64            `json:"total"`
}

func get(t *testing.T, srv *httptest.Server, path string, query url.Values, v any) int {
	u := srv.URL + path
	if query != nil {
		u += "?" + query.Encode()
	}

	res, err := http.Get(u)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	if v != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(v))
	}

	return res.StatusCode
}

func TestListener_ListJobs(t *testing.T) {
	srv := newTestServer(t, newTestCatalog(t))

	t.Run("default-page", func(t *testing.T) {
		var page pageResponse
		require.Equal(t, http.StatusOK, get(t, srv, "/jobs", nil, &page))

		assert.Equal(t, 1, page.CurrentPage)
		assert.Equal(t, 2, page.PerPage)
		assert.Equal(t, 3, page.LastPage)
		assert.Equal(t, int64(5), page.Total)
		assert.Len(t, page.Data, 2)
		require.NotNil(t, page.NextPageURL)
		assert.Contains(t, *page.NextPageURL, "page=2")
	})

	t.Run("filter", func(t *testing.T) {
		var page pageResponse
		query := url.Values{"filter": {"languages HAS_ANY (PHP,JavaScript)"}}
		require.Equal(t, http.StatusOK, get(t, srv, "/jobs", query, &page))

		require.Len(t, page.Data, 2)
		assert.Equal(t, "Senior PHP Developer", page.Data[0]["title"])
		assert.Equal(t, "Frontend Engineer", page.Data[1]["title"])

		languages, ok := page.Data[0]["languages"].([]any)
		require.True(t, ok, "languages must be a list")
		assert.Len(t, languages, 2)

		attributes, ok := page.Data[0]["job_attributes"].([]any)
		require.True(t, ok, "job_attributes must be a list")
		require.Len(t, attributes, 2)
		assert.Contains(t, attributes[0], "attribute")
	})

	t.Run("invalid-filter-is-no-error", func(t *testing.T) {
		var page pageResponse
		query := url.Values{"filter": {"((foo=bar OR"}, "per_page": {"3"}}
		require.Equal(t, http.StatusOK, get(t, srv, "/jobs", query, &page))
		assert.Equal(t, int64(5), page.Total)
	})

	t.Run("per-page-capped", func(t *testing.T) {
		var page pageResponse
		require.Equal(t, http.StatusOK, get(t, srv, "/jobs", url.Values{"per_page": {"50"}}, &page))
		assert.Equal(t, 3, page.PerPage)
		assert.Len(t, page.Data, 3)
	})

	t.Run("beyond-last-page", func(t *testing.T) {
		var page pageResponse
		require.Equal(t, http.StatusOK, get(t, srv, "/jobs", url.Values{"page": {"10"}}, &page))
		assert.Empty(t, page.Data)
		assert.Nil(t, page.From)
		assert.Nil(t, page.To)
	})

	for _, query := range []url.Values{
		{"per_page": {"abc"}},
		{"per_page": {"0"}},
		{"page": {"-1"}},
		{"page": {"1.5"}},
	} {
		t.Run("bad-request-"+query.Encode(), func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, http.StatusBadRequest, get(t, srv, "/jobs", query, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListener_GetJob(t *testing.T) {
	srv := newTestServer(t, newTestCatalog(t))

	var job map[string]any
	require.Equal(t, http.StatusOK, get(t, srv, "/jobs/3", nil, &job))
	assert.Equal(t, "Go Developer", job["title"])
	assert.Equal(t, true, job["is_remote"])

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/jobs/42", nil, nil))
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/jobs/abc", nil, nil))
}

func TestListener_Health(t *testing.T) {
	srv := newTestServer(t, newTestCatalog(t))

	var body map[string]string
	require.Equal(t, http.StatusOK, get(t, srv, "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

// failingCatalog fails every request.
type failingCatalog struct{}

func (failingCatalog) Jobs(context.Context, catalog.Query) (*catalog.Page, error) {
	return nil, errors.New("connection refused")
}

func (failingCatalog) Job(context.Context, int64) (*catalog.Job, error) {
	return nil, errors.New("connection refused")
}

func TestListener_CatalogErrors(t *testing.T) {
	srv := newTestServer(t, failingCatalog{})

	var body map[string]string
	assert.Equal(t, http.StatusInternalServerError, get(t, srv, "/jobs", nil, &body))
	assert.Equal(t, "cannot fetch jobs", body["error"], "internal errors must not leak")

	assert.Equal(t, http.StatusInternalServerError, get(t, srv, "/jobs/1", nil, nil))
}

func TestListener_Run(t *testing.T) {
	logs := testutils.NewTestLogging(t)
	l := NewListener("127.0.0.1:0", newTestCatalog(t), Options{PerPage: 10, MaxPerPage: 10}, logs.GetChildLogger("listener"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
}

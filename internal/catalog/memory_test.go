package catalog

import (
	"context"
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

func newTestMemory(t *testing.T, opts filter.ParseOptions) *Memory {
	t.Helper()

	fixtures, err := LoadFixtures("testdata/jobs.yml")
	require.NoError(t, err)

	m, err := NewMemoryFromFixtures(fixtures, opts)
	require.NoError(t, err)

	return m
}

func jobIDs(jobs []*Job) []int64 {
	ids := make([]int64, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}

	return ids
}

func TestMemory_Jobs(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, filter.ParseOptions{})
	all := []int64{1, 2, 3, 4, 5}

	tests := []struct {
		name   string
		filter string
		want   []int64
	}{
		{name: "empty", filter: "", want: all},
		{name: "whitespace-only", filter: "   ", want: all},
		{name: "unknown-field", filter: "foo=bar", want: all},
		{name: "garbage", filter: "%%%", want: all},
		{name: "job-type", filter: "job_type=full-time", want: []int64{1, 5}},
		{name: "job-type-neq", filter: "job_type!=full-time", want: []int64{2, 3, 4}},
		{name: "status", filter: "status=draft", want: []int64{4}},
		{name: "salary-numeric", filter: "salary_min>=60000", want: []int64{1, 3, 5}},
		{name: "salary-lt", filter: "salary_min<60000", want: []int64{2}},
		{name: "title-like", filter: "title LIKE Developer", want: []int64{1, 3}},
		{name: "title-like-case-sensitive", filter: "title LIKE developer", want: nil},
		{name: "job-type-in", filter: "job_type IN (contract, freelance)", want: []int64{3, 4}},
		{name: "job-type-in-whitespace", filter: "job_type IN ( contract ,freelance )", want: []int64{3, 4}},
		{name: "job-type-is-any", filter: "job_type IS_ANY (part-time)", want: []int64{2}},
		{name: "remote-true", filter: "is_remote=true", want: []int64{1, 3}},
		{name: "remote-one", filter: "is_remote=1", want: []int64{1, 3}},
		{name: "remote-false", filter: "is_remote=false", want: []int64{2, 4, 5}},
		{name: "remote-neq-is-equality", filter: "is_remote!=1", want: []int64{1, 3}},
		{name: "remote-in", filter: "is_remote IN (maybe)", want: []int64{2, 4, 5}},
		{name: "remote-like-ignored", filter: "is_remote LIKE 1", want: all},
		{name: "salary-like-ignored", filter: "salary_min LIKE 5", want: all},
		{name: "salary-not-a-number", filter: "salary_min=abc", want: all},
		{name: "salary-in-partially-valid", filter: "salary_min IN (x, 60000)", want: []int64{5}},
		{name: "published-at-not-a-number", filter: "published_at>=x", want: all},
		{name: "id-integer", filter: "id>=4", want: []int64{4, 5}},
		{name: "languages-exact", filter: "languages HAS_ANY (PHP,JavaScript)", want: []int64{1, 2}},
		{name: "languages-no-substring", filter: "languages HAS_ANY (PHPUnit)", want: []int64{4}},
		{name: "languages-operator-ignored", filter: "languages=Go", want: []int64{3}},
		{name: "locations-substring", filter: "locations IN (NY)", want: []int64{1, 4}},
		{name: "locations-any-column", filter: "locations IS_ANY (Germany, Francisco)", want: []int64{2, 3}},
		{name: "categories", filter: "categories HAS_ANY (Backend)", want: []int64{1, 3}},
		// Attribute values are text, so "10" < "3".
		{name: "attribute-lexical", filter: "attribute:years_experience>=3", want: []int64{1, 5}},
		{name: "attribute-lt", filter: "attribute:years_experience<3", want: []int64{2, 3}},
		{name: "attribute-equal", filter: "attribute:level=senior", want: []int64{1}},
		{name: "attribute-like", filter: "attribute:level LIKE i", want: []int64{1, 5}},
		{name: "attribute-in", filter: "attribute:level IN (mid,junior)", want: []int64{5}},
		{name: "attribute-unknown", filter: "attribute:nope=1", want: nil},
		{name: "and", filter: "is_remote=1 AND categories IN (Backend)", want: []int64{1, 3}},
		{name: "implicit-and", filter: "is_remote=1 languages HAS_ANY (Go)", want: []int64{3}},
		{name: "or", filter: "languages HAS_ANY (Go) OR languages HAS_ANY (Python)", want: []int64{3, 5}},
		{name: "left-to-right", filter: "job_type=contract OR job_type=full-time AND is_remote=1", want: []int64{1, 3}},
		{name: "skipped-first-node", filter: "foo=bar OR job_type=contract", want: []int64{3}},
		{name: "flattened-group", filter: "job_type=part-time OR (is_remote=1 AND salary_min>=80000)", want: []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := m.Jobs(context.Background(), Query{Filter: tt.filter, PerPage: 100})
			require.NoError(t, err)

			if tt.want == nil {
				assert.Empty(t, page.Data)
			} else {
				assert.Equal(t, tt.want, jobIDs(page.Data))
			}
			assert.Equal(t, int64(len(tt.want)), page.Total)
		})
	}
}

func TestMemory_NestedGroups(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, filter.ParseOptions{NestedGroups: true})

	page, err := m.Jobs(context.Background(), Query{Filter: "job_type=part-time OR (is_remote=1 AND salary_min>=80000)"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, jobIDs(page.Data))
}

func TestMemory_Diagnostics(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, filter.ParseOptions{})

	page, err := m.Jobs(context.Background(), Query{Filter: "foo=bar AND job_type=contract"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, jobIDs(page.Data))

	require.NotNil(t, page.Filter)
	assert.True(t, page.Filter.Diagnostics.Has(filter.UnknownField))

	page, err = m.Jobs(context.Background(), Query{Filter: "salary_min LIKE 5 OR job_type=contract"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, jobIDs(page.Data))
	assert.True(t, page.Filter.Diagnostics.Has(filter.InvalidValue))
}

func TestMemory_Pagination(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, filter.ParseOptions{})

	t.Run("second-page", func(t *testing.T) {
		page, err := m.Jobs(context.Background(), Query{Page: 2, PerPage: 2})
		require.NoError(t, err)

		assert.Equal(t, []int64{3, 4}, jobIDs(page.Data))
		assert.Equal(t, 2, page.CurrentPage)
		assert.Equal(t, 3, page.LastPage)
		assert.Equal(t, int64(5), page.Total)
		require.NotNil(t, page.From)
		require.NotNil(t, page.To)
		assert.Equal(t, 3, *page.From)
		assert.Equal(t, 4, *page.To)
	})

	t.Run("last-page", func(t *testing.T) {
		page, err := m.Jobs(context.Background(), Query{Page: 3, PerPage: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, jobIDs(page.Data))
	})

	t.Run("beyond-last-page", func(t *testing.T) {
		page, err := m.Jobs(context.Background(), Query{Page: 9, PerPage: 2})
		require.NoError(t, err)

		assert.Empty(t, page.Data)
		assert.NotNil(t, page.Data)
		assert.Nil(t, page.From)
		assert.Nil(t, page.To)
		assert.Equal(t, int64(5), page.Total)
	})

	t.Run("page-offset-overflow", func(t *testing.T) {
		page, err := m.Jobs(context.Background(), Query{Page: math.MaxInt, PerPage: 20})
		require.NoError(t, err)

		assert.Empty(t, page.Data)
		assert.NotNil(t, page.Data)
		assert.Nil(t, page.From)
		assert.Equal(t, math.MaxInt, page.CurrentPage)
		assert.Equal(t, 1, page.LastPage)
		assert.Equal(t, int64(5), page.Total)
	})

	t.Run("defaults", func(t *testing.T) {
		page, err := m.Jobs(context.Background(), Query{})
		require.NoError(t, err)

		assert.Equal(t, 1, page.CurrentPage)
		assert.Equal(t, DefaultPerPage, page.PerPage)
		assert.Len(t, page.Data, 5)
	})
}

func TestMemory_Job(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, filter.ParseOptions{})

	job, err := m.Job(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Senior PHP Developer", job.Title)
	assert.Len(t, job.Languages, 2)
	assert.Len(t, job.Attributes, 2)

	_, err = m.Job(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CancelledContext(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, filter.ParseOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Jobs(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLikeToRegexp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"%NY%", "NY", true},
		{"%NY%", "Albany, NY", true},
		{"%NY%", "Germany", false},
		{"%a.b%", "xa.by", true},
		{"%a.b%", "xacby", false},
		{"a_c", "abc", true},
		{"a_c", "abbc", false},
		{"%", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, likeToRegexp(tt.pattern).MatchString(tt.input))
		})
	}
}

func TestCompareValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		left  any
		right any
		want  int
		ok    bool
	}{
		{name: "null", left: nil, right: "1"},
		{name: "string-column-lexical", left: "10", right: "3", want: -1, ok: true},
		{name: "numeric-column", left: 10.0, right: "3", want: 1, ok: true},
		{name: "numeric-column-non-numeric-value", left: 10.0, right: "x", want: -1, ok: true},
		{name: "float", left: 60000.0, right: "60000", want: 0, ok: true},
		{name: "bool", left: true, right: true, want: 0, ok: true},
		{name: "bool-vs-false", left: true, right: false, want: 1, ok: true},
		{name: "int64", left: int64(3), right: "4", want: -1, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := compareValues(tt.left, tt.right)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

package catalog

import (
	"context"
	"github.com/icinga/icinga-go-library/types"
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// record is the flattened view of a single row as seen by memoryBuilder predicates.
type record struct {
	fields    map[string]any
	relations map[filter.Relation][]record
}

// memoryPredicate reports whether a record matches.
type memoryPredicate func(record) bool

// memoryBuilder implements filter.Builder by composing Go closures over records.
//
// Comparisons follow the SQL semantics of the database backend: NULL never matches, the type of the column
// decides whether values are compared numerically or lexically, LIKE is case-sensitive.
type memoryBuilder struct{}

// Compare implements the filter.Builder interface.
func (memoryBuilder) Compare(column string, op filter.Operator, value any) memoryPredicate {
	return func(r record) bool {
		c, ok := compareValues(r.fields[column], value)
		if !ok {
			return false
		}

		switch op {
		case filter.Eq:
			return c == 0
		case filter.Neq:
			return c != 0
		case filter.Gte:
			return c >= 0
		case filter.Lte:
			return c <= 0
		case filter.Gt:
			return c > 0
		case filter.Lt:
			return c < 0
		default:
			return false
		}
	}
}

// Like implements the filter.Builder interface.
func (memoryBuilder) Like(column, pattern string) memoryPredicate {
	re := likeToRegexp(pattern)

	return func(r record) bool {
		s, ok := toString(r.fields[column])
		return ok && re.MatchString(s)
	}
}

// In implements the filter.Builder interface.
func (memoryBuilder) In(column string, values []string) memoryPredicate {
	return func(r record) bool {
		for _, v := range values {
			if c, ok := compareValues(r.fields[column], v); ok && c == 0 {
				return true
			}
		}

		return false
	}
}

// And implements the filter.Builder interface.
func (memoryBuilder) And(left, right memoryPredicate) memoryPredicate {
	return func(r record) bool {
		return left(r) && right(r)
	}
}

// Or implements the filter.Builder interface.
func (memoryBuilder) Or(left, right memoryPredicate) memoryPredicate {
	return func(r record) bool {
		return left(r) || right(r)
	}
}

// Exists implements the filter.Builder interface.
func (b memoryBuilder) Exists(relation filter.Relation, where func(filter.Builder[memoryPredicate]) memoryPredicate) memoryPredicate {
	nested := where(b)

	return func(r record) bool {
		return slices.ContainsFunc(r.relations[relation], nested)
	}
}

// likeToRegexp translates an SQL LIKE pattern into an anchored regular expression.
func likeToRegexp(pattern string) *regexp.Regexp {
	var re strings.Builder
	re.WriteString(`(?s)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			re.WriteString(`.*`)
		case '_':
			re.WriteString(`.`)
		default:
			re.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re.WriteString(`$`)

	return regexp.MustCompile(re.String())
}

// compareValues compares left to right and returns -1, 0 or +1. Returns false if left is NULL.
//
// As in the database, the type of the column value decides: numbers and booleans are compared numerically
// and strings lexically, even if both sides look like numbers.
func compareValues(left, right any) (int, bool) {
	if left == nil || right == nil {
		return 0, false
	}

	if l, ok := toNumber(left); ok {
		if r, ok := parseNumber(right); ok {
			switch {
			case l < r:
				return -1, true
			case l > r:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	l, _ := toString(left)
	r, _ := toString(right)

	return strings.Compare(l, r), true
}

// toNumber converts numeric and boolean values to float64.
func toNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// parseNumber is like toNumber but also parses numeric strings.
func parseNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}

	return toNumber(v)
}

func toString(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	default:
		return "", false
	}
}

// newJobRecord flattens a job including its relations into a record.
func newJobRecord(j *Job) record {
	r := record{
		fields: map[string]any{
			"id":           j.ID,
			"title":        j.Title,
			"description":  j.Description,
			"company_name": j.CompanyName,
			"salary_min":   nullableFloat(j.SalaryMin),
			"salary_max":   nullableFloat(j.SalaryMax),
			"is_remote":    j.IsRemote,
			"job_type":     j.JobType,
			"status":       j.Status,
			"published_at": nullableMilli(j.PublishedAt),
			"created_at":   nullableMilli(j.CreatedAt),
			"updated_at":   nullableMilli(j.UpdatedAt),
		},
		relations: make(map[filter.Relation][]record, 4),
	}

	for _, l := range j.Languages {
		r.relations[filter.Languages] = append(r.relations[filter.Languages], record{fields: map[string]any{
			"id": l.ID, filter.ColumnName: l.Name,
		}})
	}

	for _, l := range j.Locations {
		r.relations[filter.Locations] = append(r.relations[filter.Locations], record{fields: map[string]any{
			"id": l.ID, filter.ColumnCity: l.City, filter.ColumnState: l.State, filter.ColumnCountry: l.Country,
		}})
	}

	for _, c := range j.Categories {
		r.relations[filter.Categories] = append(r.relations[filter.Categories], record{fields: map[string]any{
			"id": c.ID, filter.ColumnName: c.Name,
		}})
	}

	for _, av := range j.Attributes {
		r.relations[filter.AttributeValues] = append(r.relations[filter.AttributeValues], record{fields: map[string]any{
			"id": av.Attribute.ID, filter.ColumnName: av.Attribute.Name, filter.ColumnValue: av.Value,
		}})
	}

	return r
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}

	return *f
}

func nullableMilli(t types.UnixMilli) any {
	if t.Time().IsZero() {
		return nil
	}

	return t.Time().UnixMilli()
}

// Memory is a read-only job catalog kept entirely in memory, e.g. loaded from fixtures.
type Memory struct {
	jobs    []*Job
	records []record
	schema  filter.Schema
	opts    filter.ParseOptions
}

// NewMemory creates a Memory catalog of the given jobs, which must not be modified afterwards.
// Jobs are served ordered by their id.
func NewMemory(jobs []*Job, opts filter.ParseOptions) *Memory {
	jobs = slices.Clone(jobs)
	slices.SortFunc(jobs, func(a, b *Job) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	m := &Memory{
		jobs:    jobs,
		records: make([]record, 0, len(jobs)),
		schema:  NewStaticSchema(map[string]any{filter.BaseEntity: (*Job)(nil)}),
		opts:    opts,
	}
	for _, j := range jobs {
		m.records = append(m.records, newJobRecord(j))
	}

	return m
}

// NewMemoryFromFixtures creates a Memory catalog of all the jobs of the given fixtures.
func NewMemoryFromFixtures(f *Fixtures, opts filter.ParseOptions) (*Memory, error) {
	jobs, err := f.ToJobs(time.Now())
	if err != nil {
		return nil, err
	}

	return NewMemory(jobs, opts), nil
}

// Jobs returns a single page of the jobs matching the query's filter.
func (m *Memory) Jobs(ctx context.Context, q Query) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q = q.normalize()
	f := filter.Parse(q.Filter, m.opts)

	var pred memoryPredicate
	var ok bool
	if !f.Empty() {
		pred, ok = filter.CompileFilter[memoryPredicate](f, memoryBuilder{}, m.schema)
	}

	var matches []*Job
	for i, r := range m.records {
		if !ok || pred(r) {
			matches = append(matches, m.jobs[i])
		}
	}

	total := int64(len(matches))
	offset, inRange := q.offset()
	if !inRange {
		return newPage(q, total, nil, f), nil
	}

	from := min(offset, len(matches))
	to := min(from+q.PerPage, len(matches))

	return newPage(q, total, matches[from:to], f), nil
}

// Job returns the job with the given id.
func (m *Memory) Job(ctx context.Context, id int64) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i, found := slices.BinarySearchFunc(m.jobs, id, func(j *Job, id int64) int {
		switch {
		case j.ID < id:
			return -1
		case j.ID > id:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return nil, ErrNotFound
	}

	return m.jobs[i], nil
}

// Assert interface compliance.
var _ filter.Builder[memoryPredicate] = memoryBuilder{}

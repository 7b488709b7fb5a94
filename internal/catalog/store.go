package catalog

import (
	"context"
	"database/sql"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"github.com/icinga/icinga-job-catalog/internal/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"strings"
)

// Store is the database backed job catalog.
type Store struct {
	db     *database.DB
	schema filter.Schema
	opts   filter.ParseOptions
	logger *logging.Logger
}

// NewStore creates a new Store. Basic filters are validated against the given schema.
func NewStore(db *database.DB, schema filter.Schema, opts filter.ParseOptions, logger *logging.Logger) *Store {
	return &Store{db: db, schema: schema, opts: opts, logger: logger}
}

// Jobs returns a single page of the jobs matching the query's filter, ordered by their id.
//
// The filter itself never causes an error, fragments that can't be applied are reported in the
// diagnostics of Page.Filter instead.
func (s *Store) Jobs(ctx context.Context, q Query) (*Page, error) {
	q = q.normalize()
	f := filter.Parse(q.Filter, s.opts)

	var where string
	var args []any
	if !f.Empty() {
		if pred, ok := filter.CompileFilter[sqlPredicate](f, newSQLBuilder((*Job)(nil).TableName()), s.schema); ok {
			where = " WHERE " + pred.Query
			args = pred.Args
		}
	}

	var total int64
	countStmt := s.db.Rebind(`SELECT COUNT(*) FROM "job"` + where)
	if err := s.db.GetContext(ctx, &total, countStmt, args...); err != nil {
		return nil, errors.Wrapf(err, "cannot count jobs matching %q", q.Filter)
	}

	offset, inRange := q.offset()
	if !inRange {
		return newPage(q, total, nil, f), nil
	}

	pageArgs := make([]any, 0, len(args)+2)
	pageArgs = append(pageArgs, args...)
	pageArgs = append(pageArgs, q.PerPage, offset)

	stmt := s.db.Rebind(s.selectJobsStmt() + where + ` ORDER BY "job"."id" LIMIT ? OFFSET ?`)
	s.logger.Debugw("Fetching jobs", zap.String("query", stmt), zap.Int("page", q.Page), zap.Int("per_page", q.PerPage))

	var jobs []*Job
	if err := s.db.SelectContext(ctx, &jobs, stmt, pageArgs...); err != nil {
		return nil, errors.Wrapf(err, "cannot fetch jobs matching %q", q.Filter)
	}

	if err := s.loadRelations(ctx, jobs); err != nil {
		return nil, err
	}

	return newPage(q, total, jobs, f), nil
}

// Job returns the job with the given id including all its relations.
func (s *Store) Job(ctx context.Context, id int64) (*Job, error) {
	job := &Job{}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(s.selectJobsStmt()+` WHERE "job"."id" = ?`), id).StructScan(job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "cannot fetch job %d", id)
	}

	if err := s.loadRelations(ctx, []*Job{job}); err != nil {
		return nil, err
	}

	return job, nil
}

func (s *Store) selectJobsStmt() string {
	columns := s.db.BuildColumns(&Job{})
	for i, c := range columns {
		columns[i] = `"job".` + quoteIdentifier(c)
	}

	return `SELECT ` + strings.Join(columns, ", ") + ` FROM "job"`
}

// Result rows of the relation queries, each carrying the id of the job the related row belongs to.
type (
	languageRow struct {
		JobID int64 `db:"job_id"`
		Language
	}

	locationRow struct {
		JobID int64 `db:"job_id"`
		Location
	}

	categoryRow struct {
		JobID int64 `db:"job_id"`
		Category
	}
)

// loadRelations fetches the languages, locations, categories and attribute values of all the given jobs.
// Each relation is loaded by its own query, all of them running concurrently.
func (s *Store) loadRelations(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(jobs))
	jobsById := make(map[int64]*Job, len(jobs))
	for _, j := range jobs {
		j.initRelations()
		ids = append(ids, j.ID)
		jobsById[j.ID] = j
	}
	args := []any{ids}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stmt := `SELECT "job_language"."job_id", "language"."id", "language"."name" FROM "job_language"` +
			` INNER JOIN "language" ON "language"."id" = "job_language"."language_id"` +
			` WHERE "job_language"."job_id" IN (?) ORDER BY "language"."name"`

		err := utils.ExecAndApply[languageRow](ctx, s.db, stmt, args, func(r *languageRow) {
			job := jobsById[r.JobID]
			job.Languages = append(job.Languages, &r.Language)
		})

		return errors.Wrap(err, "cannot load job languages")
	})

	g.Go(func() error {
		stmt := `SELECT "job_location"."job_id", "location"."id", "location"."city", "location"."state",` +
			` "location"."country" FROM "job_location"` +
			` INNER JOIN "location" ON "location"."id" = "job_location"."location_id"` +
			` WHERE "job_location"."job_id" IN (?) ORDER BY "location"."id"`

		err := utils.ExecAndApply[locationRow](ctx, s.db, stmt, args, func(r *locationRow) {
			job := jobsById[r.JobID]
			job.Locations = append(job.Locations, &r.Location)
		})

		return errors.Wrap(err, "cannot load job locations")
	})

	g.Go(func() error {
		stmt := `SELECT "job_category"."job_id", "category"."id", "category"."name" FROM "job_category"` +
			` INNER JOIN "category" ON "category"."id" = "job_category"."category_id"` +
			` WHERE "job_category"."job_id" IN (?) ORDER BY "category"."name"`

		err := utils.ExecAndApply[categoryRow](ctx, s.db, stmt, args, func(r *categoryRow) {
			job := jobsById[r.JobID]
			job.Categories = append(job.Categories, &r.Category)
		})

		return errors.Wrap(err, "cannot load job categories")
	})

	g.Go(func() error {
		stmt := `SELECT "job_attribute_value"."id", "job_attribute_value"."job_id",` +
			` "job_attribute_value"."attribute_id", "job_attribute_value"."value",` +
			` "attribute"."id" AS "attribute.id", "attribute"."name" AS "attribute.name",` +
			` "attribute"."type" AS "attribute.type", "attribute"."options" AS "attribute.options"` +
			` FROM "job_attribute_value"` +
			` INNER JOIN "attribute" ON "attribute"."id" = "job_attribute_value"."attribute_id"` +
			` WHERE "job_attribute_value"."job_id" IN (?) ORDER BY "job_attribute_value"."id"`

		err := utils.ExecAndApply[AttributeValue](ctx, s.db, stmt, args, func(av *AttributeValue) {
			job := jobsById[av.JobID]
			job.Attributes = append(job.Attributes, av)
		})

		return errors.Wrap(err, "cannot load job attributes")
	})

	return g.Wait()
}

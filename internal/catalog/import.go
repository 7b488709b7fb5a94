package catalog

import (
	"context"
	"database/sql"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-job-catalog/internal/utils"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"sort"
	"strings"
)

// Import inserts the given jobs including their relations within a single transaction.
//
// Languages, locations, categories and attributes are looked up by their natural key first and only inserted if
// they don't exist yet, so that importing multiple fixture files doesn't create duplicates. The ids of the
// given jobs and their relations are updated to the ones from the database.
func (s *Store) Import(ctx context.Context, jobs []*Job) error {
	return utils.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, job := range jobs {
			if err := s.importJob(ctx, tx, job); err != nil {
				return err
			}

			s.logger.Debugw("Imported job", zap.Inline(job))
		}

		return nil
	})
}

func (s *Store) importJob(ctx context.Context, tx *sqlx.Tx, job *Job) error {
	id, err := utils.InsertAndFetchId(ctx, tx, utils.BuildInsertStmtWithout(s.db, job, "id"), job)
	if err != nil {
		return errors.Wrapf(err, "cannot insert job %q", job.Title)
	}
	job.ID = id

	for _, l := range job.Languages {
		l.ID, err = s.lookupOrInsert(ctx, tx, l, map[string]any{"name": l.Name})
		if err != nil {
			return err
		}
		if err := s.insertLink(ctx, tx, &jobLanguage{JobID: job.ID, LanguageID: l.ID}); err != nil {
			return err
		}
	}

	for _, l := range job.Locations {
		l.ID, err = s.lookupOrInsert(ctx, tx, l, map[string]any{"city": l.City, "state": l.State, "country": l.Country})
		if err != nil {
			return err
		}
		if err := s.insertLink(ctx, tx, &jobLocation{JobID: job.ID, LocationID: l.ID}); err != nil {
			return err
		}
	}

	for _, c := range job.Categories {
		c.ID, err = s.lookupOrInsert(ctx, tx, c, map[string]any{"name": c.Name})
		if err != nil {
			return err
		}
		if err := s.insertLink(ctx, tx, &jobCategory{JobID: job.ID, CategoryID: c.ID}); err != nil {
			return err
		}
	}

	for _, av := range job.Attributes {
		av.Attribute.ID, err = s.lookupOrInsert(ctx, tx, &av.Attribute, map[string]any{"name": av.Attribute.Name})
		if err != nil {
			return err
		}

		av.JobID = job.ID
		av.AttributeID = av.Attribute.ID

		stmt := `INSERT INTO "job_attribute_value" ("job_id", "attribute_id", "value") VALUES (:job_id, :attribute_id, :value)`
		av.ID, err = utils.InsertAndFetchId(ctx, tx, stmt, av)
		if err != nil {
			return errors.Wrapf(err, "cannot insert value of attribute %q", av.Attribute.Name)
		}
	}

	return nil
}

// lookupOrInsert returns the id of the row matching all the given key columns or inserts row if there is none.
func (s *Store) lookupOrInsert(ctx context.Context, tx *sqlx.Tx, row any, keys map[string]any) (int64, error) {
	table := database.TableName(row)

	columns := make([]string, 0, len(keys))
	for c := range keys {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	conditions := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, c := range columns {
		conditions = append(conditions, quoteIdentifier(c)+" = ?")
		args = append(args, keys[c])
	}

	stmt := tx.Rebind(`SELECT "id" FROM ` + quoteIdentifier(table) + ` WHERE ` + strings.Join(conditions, " AND "))

	var id int64
	err := tx.GetContext(ctx, &id, stmt, args...)
	if err == nil {
		return id, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Wrapf(err, "cannot look up %s", table)
	}

	id, err = utils.InsertAndFetchId(ctx, tx, utils.BuildInsertStmtWithout(s.db, row, "id"), row)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot insert %s", table)
	}

	return id, nil
}

func (s *Store) insertLink(ctx context.Context, tx *sqlx.Tx, link any) error {
	// Link tables have no id column, so nothing is excluded here.
	if _, err := tx.NamedExecContext(ctx, utils.BuildInsertStmtWithout(s.db, link, "id"), link); err != nil {
		return errors.Wrapf(err, "cannot insert %s", database.TableName(link))
	}

	return nil
}

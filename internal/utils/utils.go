package utils

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-go-library/types"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"strings"
)

// RunInTx allows running a function in a database transaction without requiring manual transaction handling.
//
// A new transaction is started on db which is then passed to fn. After fn returns, the transaction is
// committed unless an error was returned. If fn returns an error, that error is returned, otherwise an
// error is returned if a database operation fails.
func RunInTx(ctx context.Context, db *database.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "cannot start transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "cannot commit transaction")
}

// BuildInsertStmtWithout builds an insert stmt without the provided column.
func BuildInsertStmtWithout(db *database.DB, into interface{}, withoutColumn string) string {
	columns := db.BuildColumns(into)
	for i, column := range columns {
		if column == withoutColumn {
			// Ids are auto incremented, so just erase it from our insert columns
			columns = append(columns[:i], columns[i+1:]...)
			break
		}
	}

	return fmt.Sprintf(
		`INSERT INTO "%s" ("%s") VALUES (%s)`,
		database.TableName(into), strings.Join(columns, `", "`),
		fmt.Sprintf(":%s", strings.Join(columns, ", :")),
	)
}

// InsertAndFetchId executes the given query and fetches the last inserted ID.
func InsertAndFetchId(ctx context.Context, tx *sqlx.Tx, stmt string, args any) (int64, error) {
	var lastInsertId int64
	if tx.DriverName() == database.PostgreSQL {
		preparedStmt, err := tx.PrepareNamedContext(ctx, stmt+" RETURNING id")
		if err != nil {
			return 0, err
		}
		defer func() { _ = preparedStmt.Close() }()

		err = preparedStmt.GetContext(ctx, &lastInsertId, args)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to insert entry for type %T", args)
		}
	} else {
		result, err := tx.NamedExecContext(ctx, stmt, args)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to insert entry for type %T", args)
		}

		lastInsertId, err = result.LastInsertId()
		if err != nil {
			return 0, errors.Wrapf(err, "failed to fetch last insert id for type %T", args)
		}
	}

	return lastInsertId, nil
}

// ExecAndApply applies the provided restoreFunc callback for each successfully retrieved row of the specified type.
//
// Slice arguments are expanded into their IN (...) placeholders before the query is rebound to the driver's
// bind type. Returns error on any database failure.
func ExecAndApply[Row any](ctx context.Context, db *database.DB, stmt string, args []any, restoreFunc func(*Row)) error {
	if len(args) > 0 {
		var err error
		stmt, args, err = sqlx.In(stmt, args...)
		if err != nil {
			return errors.Wrapf(err, "cannot expand arguments of query %q", stmt)
		}
	}

	table := database.TableName(new(Row))
	rows, err := db.QueryxContext(ctx, db.Rebind(stmt), args...)
	if err != nil {
		return errors.Wrapf(err, "cannot execute query %q", stmt)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		row := new(Row)
		if err := rows.StructScan(row); err != nil {
			return errors.Wrapf(err, "cannot scan row of table %q", table)
		}

		restoreFunc(row)
	}

	return rows.Err()
}

// ToDBString transforms the given string to types.String.
func ToDBString(value string) types.String {
	str := types.String{NullString: sql.NullString{String: value}}
	if value != "" {
		str.Valid = true
	}

	return str
}

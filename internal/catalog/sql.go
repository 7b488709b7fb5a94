package catalog

import (
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"strings"
)

// sqlPredicate is a WHERE clause fragment with '?' placeholders and its bind arguments in order.
type sqlPredicate struct {
	Query string
	Args  []any
}

// relationJoin describes how a related collection is reached from the job table.
type relationJoin struct {
	link       string   // link is the table referencing job.id by its job_id column.
	target     string   // target is the table joined to link.
	targetKey  string   // targetKey is the column of link referencing target.id.
	linkFields []string // linkFields are the columns of the nested predicate resolved against link instead of target.
}

var relationJoins = map[filter.Relation]relationJoin{
	filter.Languages:       {link: "job_language", target: "language", targetKey: "language_id"},
	filter.Locations:       {link: "job_location", target: "location", targetKey: "location_id"},
	filter.Categories:      {link: "job_category", target: "category", targetKey: "category_id"},
	filter.AttributeValues: {link: "job_attribute_value", target: "attribute", targetKey: "attribute_id", linkFields: []string{filter.ColumnValue}},
}

// sqlBuilder implements filter.Builder for SQL WHERE clauses.
//
// Columns are qualified with table unless they are listed in columnTables.
type sqlBuilder struct {
	table        string
	columnTables map[string]string
}

func newSQLBuilder(table string) sqlBuilder {
	return sqlBuilder{table: table}
}

func (b sqlBuilder) column(name string) string {
	table := b.table
	if t, ok := b.columnTables[name]; ok {
		table = t
	}

	return quoteIdentifier(table) + "." + quoteIdentifier(name)
}

// Compare implements the filter.Builder interface.
func (b sqlBuilder) Compare(column string, op filter.Operator, value any) sqlPredicate {
	return sqlPredicate{Query: b.column(column) + " " + string(op) + " ?", Args: []any{value}}
}

// Like implements the filter.Builder interface.
func (b sqlBuilder) Like(column, pattern string) sqlPredicate {
	return sqlPredicate{Query: b.column(column) + " LIKE ?", Args: []any{pattern}}
}

// In implements the filter.Builder interface.
func (b sqlBuilder) In(column string, values []string) sqlPredicate {
	if len(values) == 0 {
		return sqlPredicate{Query: "1 = 0"}
	}

	args := make([]any, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")

	return sqlPredicate{Query: b.column(column) + " IN (" + placeholders + ")", Args: args}
}

// And implements the filter.Builder interface.
func (b sqlBuilder) And(left, right sqlPredicate) sqlPredicate {
	return combine(left, "AND", right)
}

// Or implements the filter.Builder interface.
func (b sqlBuilder) Or(left, right sqlPredicate) sqlPredicate {
	return combine(left, "OR", right)
}

// Exists implements the filter.Builder interface.
//
// The sub query correlates to the job table of the outer query, so that a job is never duplicated
// regardless of how many related rows match.
func (b sqlBuilder) Exists(relation filter.Relation, where func(filter.Builder[sqlPredicate]) sqlPredicate) sqlPredicate {
	join, ok := relationJoins[relation]
	if !ok {
		return sqlPredicate{Query: "1 = 0"}
	}

	nested := sqlBuilder{table: join.target, columnTables: map[string]string{}}
	for _, f := range join.linkFields {
		nested.columnTables[f] = join.link
	}
	inner := where(nested)

	link, target := quoteIdentifier(join.link), quoteIdentifier(join.target)

	var q strings.Builder
	q.WriteString("EXISTS (SELECT 1 FROM ")
	q.WriteString(link)
	q.WriteString(" INNER JOIN " + target + " ON " + target + `."id" = ` + link + "." + quoteIdentifier(join.targetKey))
	q.WriteString(" WHERE " + link + `."job_id" = ` + b.column("id"))
	q.WriteString(" AND (" + inner.Query + "))")

	return sqlPredicate{Query: q.String(), Args: inner.Args}
}

func combine(left sqlPredicate, op string, right sqlPredicate) sqlPredicate {
	args := make([]any, 0, len(left.Args)+len(right.Args))
	args = append(args, left.Args...)
	args = append(args, right.Args...)

	return sqlPredicate{Query: "(" + left.Query + " " + op + " " + right.Query + ")", Args: args}
}

// quoteIdentifier quotes an SQL identifier using ANSI double quotes, which both supported databases understand
// as the connection runs MySQL with sql_mode ANSI_QUOTES.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Assert interface compliance.
var _ filter.Builder[sqlPredicate] = sqlBuilder{}

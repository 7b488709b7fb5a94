package catalog

import (
	"context"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/types"
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"
)

// entityTables maps the entity names used by the filter package to their database tables.
var entityTables = map[string]string{
	filter.BaseEntity: (*Job)(nil).TableName(),
}

// Schema is a snapshot of the columns of all filterable entities.
//
// The snapshot of a database backed Schema can be refreshed at any time, so all accesses are synchronized.
type Schema struct {
	db     *database.DB
	logger *logging.Logger

	fields map[string]map[string]filter.FieldKind
	mu     sync.RWMutex
}

// NewSchema creates a Schema that loads its columns from the given database. It is empty until
// UpdateFromDatabase has been called.
func NewSchema(db *database.DB, logger *logging.Logger) *Schema {
	return &Schema{db: db, logger: logger}
}

// NewStaticSchema creates a Schema from the db struct tags of the given entities.
// Column kinds are derived from the Go types of the tagged fields.
func NewStaticSchema(entities map[string]any) *Schema {
	mapper := reflectx.NewMapper("db")

	fields := make(map[string]map[string]filter.FieldKind)
	for entity, subject := range entities {
		fields[entity] = make(map[string]filter.FieldKind)
		for _, fi := range mapper.TypeMap(reflectx.Deref(reflect.TypeOf(subject))).Index {
			if fi.Embedded || fi.Parent.Path != "" {
				continue
			}
			fields[entity][fi.Name] = fieldKind(fi.Field.Type)
		}
	}

	return &Schema{fields: fields}
}

// HasField implements the filter.Schema interface.
func (s *Schema) HasField(entity, field string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.fields[entity][field]
	return ok
}

// FieldKind implements the filter.KindSchema interface.
func (s *Schema) FieldKind(entity, field string) filter.FieldKind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fields[entity][field]
}

// UpdateFromDatabase replaces the current snapshot with the columns currently present in the database.
// On error, the previous snapshot is kept.
func (s *Schema) UpdateFromDatabase(ctx context.Context) error {
	fields := make(map[string]map[string]filter.FieldKind)
	for entity, table := range entityTables {
		columns, err := s.fetchColumns(ctx, table)
		if err != nil {
			return err
		}

		fields[entity] = columns
		s.logger.Debugw("Loaded table columns",
			zap.String("table", table), zap.Strings("columns", slices.Sorted(maps.Keys(columns))))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields = fields

	return nil
}

// PeriodicUpdates refreshes the snapshot at the given interval until ctx is done.
func (s *Schema) PeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Debug("Periodically updating schema")
			if err := s.UpdateFromDatabase(ctx); err != nil {
				s.logger.Errorw("Periodic schema update failed, continuing with previous schema", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// fetchColumns selects no rows at all from the given table, just to learn its columns and their kinds.
func (s *Schema) fetchColumns(ctx context.Context, table string) (map[string]filter.FieldKind, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT * FROM `+quoteIdentifier(table)+` WHERE 1 = 0`)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot query columns of table %q", table)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot fetch columns of table %q", table)
	}

	columns := make(map[string]filter.FieldKind, len(columnTypes))
	for _, t := range columnTypes {
		columns[t.Name()] = columnKind(t.DatabaseTypeName())
	}

	return columns, nil
}

// columnKind maps a database type name as reported by the PostgreSQL and MySQL drivers to a filter.FieldKind.
// Types not known to be numeric or boolean are text.
func columnKind(databaseType string) filter.FieldKind {
	switch strings.TrimPrefix(strings.ToUpper(databaseType), "UNSIGNED ") {
	case "BOOL", "BOOLEAN":
		return filter.KindBool
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT":
		return filter.KindInteger
	case "NUMERIC", "DECIMAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "REAL":
		return filter.KindDecimal
	default:
		return filter.KindText
	}
}

var unixMilliType = reflect.TypeOf(types.UnixMilli{})

// fieldKind returns the filter.FieldKind of a struct field of the given type.
func fieldKind(t reflect.Type) filter.FieldKind {
	t = reflectx.Deref(t)
	if t == unixMilliType {
		return filter.KindInteger
	}

	switch t.Kind() {
	case reflect.Bool:
		return filter.KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return filter.KindInteger
	case reflect.Float32, reflect.Float64:
		return filter.KindDecimal
	default:
		return filter.KindText
	}
}

// Assert interface compliance.
var _ filter.KindSchema = (*Schema)(nil)

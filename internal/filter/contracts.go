package filter

// BaseEntity is the entity name passed to Schema.HasField for basic filters.
const BaseEntity = "job"

// Schema is implemented by everything that can tell whether a column exists on an entity.
type Schema interface {
	HasField(entity, field string) bool
}

// SchemaFunc adapts an ordinary function to the Schema interface.
type SchemaFunc func(entity, field string) bool

// HasField implements the Schema interface.
func (f SchemaFunc) HasField(entity, field string) bool {
	return f(entity, field)
}

// FieldKind is the value domain of a column. It decides which operators and values a basic filter on the
// column may use.
type FieldKind int

const (
	KindText FieldKind = iota
	KindInteger
	KindDecimal
	KindBool
)

// KindSchema is implemented by schemas that also know the kind of their columns.
// Columns of schemas not implementing it are all treated as text.
type KindSchema interface {
	Schema
	FieldKind(entity, field string) FieldKind
}

// Builder composes predicates of type P. Implementations must not share mutable state between the returned
// values: combining two predicates always yields a new one.
type Builder[P any] interface {
	// Compare returns a predicate comparing column to value using one of =, !=, >=, <=, > and <.
	Compare(column string, op Operator, value any) P
	// Like returns a substring match predicate. The pattern already contains the '%' wildcards.
	Like(column, pattern string) P
	// In returns a set membership predicate.
	In(column string, values []string) P
	And(left, right P) P
	Or(left, right P) P
	// Exists returns a predicate that holds if at least one row of the given relation satisfies the predicate
	// built by where. The Builder passed to where resolves columns against the related rows.
	Exists(relation Relation, where func(Builder[P]) P) P
}

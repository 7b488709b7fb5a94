package catalog

import (
	"github.com/icinga/icinga-go-library/types"
	"go.uber.org/zap/zapcore"
)

// Job types as allowed by the job_type column.
const (
	JobTypeFullTime  = "full-time"
	JobTypePartTime  = "part-time"
	JobTypeContract  = "contract"
	JobTypeFreelance = "freelance"
)

// Job states as allowed by the status column.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Job is a single job posting, the base entity of the catalog.
//
// The relation fields are not part of the job table and are loaded separately.
type Job struct {
	ID          int64           `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	CompanyName string          `db:"company_name" json:"company_name"`
	SalaryMin   *float64        `db:"salary_min" json:"salary_min"`
	SalaryMax   *float64        `db:"salary_max" json:"salary_max"`
	IsRemote    bool            `db:"is_remote" json:"is_remote"`
	JobType     string          `db:"job_type" json:"job_type"`
	Status      string          `db:"status" json:"status"`
	PublishedAt types.UnixMilli `db:"published_at" json:"published_at"`
	CreatedAt   types.UnixMilli `db:"created_at" json:"created_at"`
	UpdatedAt   types.UnixMilli `db:"updated_at" json:"updated_at"`

	Languages  []*Language       `db:"-" json:"languages"`
	Locations  []*Location       `db:"-" json:"locations"`
	Categories []*Category       `db:"-" json:"categories"`
	Attributes []*AttributeValue `db:"-" json:"job_attributes"`
}

// TableName implements the database.TableNamer interface.
func (j *Job) TableName() string {
	return "job"
}

// MarshalLogObject implements the zapcore.ObjectMarshaler interface.
func (j *Job) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt64("id", j.ID)
	encoder.AddString("title", j.Title)
	encoder.AddString("company_name", j.CompanyName)
	encoder.AddString("job_type", j.JobType)
	return nil
}

// initRelations sets all relations to empty slices, so that they're encoded as [] instead of null.
func (j *Job) initRelations() {
	j.Languages = []*Language{}
	j.Locations = []*Location{}
	j.Categories = []*Category{}
	j.Attributes = []*AttributeValue{}
}

type Language struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TableName implements the database.TableNamer interface.
func (l *Language) TableName() string {
	return "language"
}

type Location struct {
	ID      int64  `db:"id" json:"id"`
	City    string `db:"city" json:"city"`
	State   string `db:"state" json:"state"`
	Country string `db:"country" json:"country"`
}

// TableName implements the database.TableNamer interface.
func (l *Location) TableName() string {
	return "location"
}

type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TableName implements the database.TableNamer interface.
func (c *Category) TableName() string {
	return "category"
}

// Attribute types as allowed by the attribute.type column.
const (
	AttributeText    = "text"
	AttributeNumber  = "number"
	AttributeBoolean = "boolean"
	AttributeDate    = "date"
	AttributeSelect  = "select"
)

// Attribute is the definition of a dynamic job attribute.
type Attribute struct {
	ID      int64        `db:"id" json:"id"`
	Name    string       `db:"name" json:"name"`
	Type    string       `db:"type" json:"type"`
	Options types.String `db:"options" json:"options"` // Options is a JSON encoded list of choices for select attributes.
}

// TableName implements the database.TableNamer interface.
func (a *Attribute) TableName() string {
	return "attribute"
}

// AttributeValue is the value of a single Attribute for a single Job.
type AttributeValue struct {
	ID          int64     `db:"id" json:"id"`
	JobID       int64     `db:"job_id" json:"job_id"`
	AttributeID int64     `db:"attribute_id" json:"attribute_id"`
	Value       string    `db:"value" json:"value"`
	Attribute   Attribute `db:"attribute" json:"attribute"`
}

// TableName implements the database.TableNamer interface.
func (av *AttributeValue) TableName() string {
	return "job_attribute_value"
}

// Link rows of the many-to-many relations.

type jobLanguage struct {
	JobID      int64 `db:"job_id"`
	LanguageID int64 `db:"language_id"`
}

func (*jobLanguage) TableName() string {
	return "job_language"
}

type jobLocation struct {
	JobID      int64 `db:"job_id"`
	LocationID int64 `db:"location_id"`
}

func (*jobLocation) TableName() string {
	return "job_location"
}

type jobCategory struct {
	JobID      int64 `db:"job_id"`
	CategoryID int64 `db:"category_id"`
}

func (*jobCategory) TableName() string {
	return "job_category"
}

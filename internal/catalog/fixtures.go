package catalog

import (
	"encoding/json"
	"fmt"
	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
	"github.com/icinga/icinga-go-library/types"
	"github.com/icinga/icinga-job-catalog/internal/utils"
	"github.com/pkg/errors"
	"io"
	"os"
	"slices"
	"sort"
	"time"
)

// Fixtures is the YAML representation of a set of jobs to populate a catalog with.
//
//	attributes:
//	  - name: years_experience
//	    type: number
//	jobs:
//	  - title: Senior PHP Developer
//	    company_name: Acme
//	    job_type: full-time
//	    is_remote: true
//	    languages: [PHP, JavaScript]
//	    locations:
//	      - {city: New York, state: NY, country: USA}
//	    categories: [Backend]
//	    attributes:
//	      years_experience: "5"
type Fixtures struct {
	Attributes []*AttributeFixture `yaml:"attributes"`
	Jobs       []*JobFixture       `yaml:"jobs"`
}

// AttributeFixture declares an attribute. Attributes used by jobs without being declared are of type text.
type AttributeFixture struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type" default:"text"`
	Options []string `yaml:"options"`
}

type LocationFixture struct {
	City    string `yaml:"city"`
	State   string `yaml:"state"`
	Country string `yaml:"country"`
}

type JobFixture struct {
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	CompanyName string            `yaml:"company_name"`
	SalaryMin   *float64          `yaml:"salary_min"`
	SalaryMax   *float64          `yaml:"salary_max"`
	IsRemote    bool              `yaml:"is_remote"`
	JobType     string            `yaml:"job_type" default:"full-time"`
	Status      string            `yaml:"status" default:"published"`
	PublishedAt string            `yaml:"published_at"` // PublishedAt is an RFC 3339 timestamp.
	Languages   []string          `yaml:"languages"`
	Locations   []LocationFixture `yaml:"locations"`
	Categories  []string          `yaml:"categories"`
	Attributes  map[string]string `yaml:"attributes"`
}

var (
	jobTypes       = []string{JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeFreelance}
	jobStates      = []string{StatusDraft, StatusPublished, StatusArchived}
	attributeTypes = []string{AttributeText, AttributeNumber, AttributeBoolean, AttributeDate, AttributeSelect}
)

// LoadFixtures reads and validates the fixtures from the given YAML file.
func LoadFixtures(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fixtures, err := ParseFixtures(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load fixtures from %q", path)
	}

	return fixtures, nil
}

// ParseFixtures decodes and validates YAML fixtures.
func ParseFixtures(r io.Reader) (*Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.NewDecoder(r).Decode(&fixtures); err != nil {
		return nil, err
	}

	for _, a := range fixtures.Attributes {
		if err := defaults.Set(a); err != nil {
			return nil, err
		}
	}
	for _, j := range fixtures.Jobs {
		if err := defaults.Set(j); err != nil {
			return nil, err
		}
	}

	if err := fixtures.Validate(); err != nil {
		return nil, err
	}

	return &fixtures, nil
}

// Validate checks all enum values and required fields of the fixtures.
func (f *Fixtures) Validate() error {
	for _, a := range f.Attributes {
		if a.Name == "" {
			return errors.New("attribute without a name")
		}
		if !slices.Contains(attributeTypes, a.Type) {
			return fmt.Errorf("attribute %q has invalid type %q", a.Name, a.Type)
		}
	}

	for i, j := range f.Jobs {
		if j.Title == "" {
			return fmt.Errorf("job #%d has no title", i)
		}
		if !slices.Contains(jobTypes, j.JobType) {
			return fmt.Errorf("job %q has invalid job_type %q", j.Title, j.JobType)
		}
		if !slices.Contains(jobStates, j.Status) {
			return fmt.Errorf("job %q has invalid status %q", j.Title, j.Status)
		}
		if j.PublishedAt != "" {
			if _, err := time.Parse(time.RFC3339, j.PublishedAt); err != nil {
				return fmt.Errorf("job %q has invalid published_at: %w", j.Title, err)
			}
		}
	}

	return nil
}

// ToJobs converts the fixtures to jobs with all relations populated.
//
// Ids are assigned sequentially starting at 1 per entity type, and relations sharing the same natural key
// share the same id.
func (f *Fixtures) ToJobs(now time.Time) ([]*Job, error) {
	attributes := make(map[string]*Attribute)
	for _, a := range f.Attributes {
		attr := &Attribute{ID: int64(len(attributes) + 1), Name: a.Name, Type: a.Type}
		if len(a.Options) > 0 {
			options, err := json.Marshal(a.Options)
			if err != nil {
				return nil, err
			}
			attr.Options = utils.ToDBString(string(options))
		}

		attributes[a.Name] = attr
	}

	languages := make(map[string]*Language)
	locations := make(map[LocationFixture]*Location)
	categories := make(map[string]*Category)
	var attributeValueID int64

	jobs := make([]*Job, 0, len(f.Jobs))
	for i, jf := range f.Jobs {
		job := &Job{
			ID:          int64(i + 1),
			Title:       jf.Title,
			Description: jf.Description,
			CompanyName: jf.CompanyName,
			SalaryMin:   jf.SalaryMin,
			SalaryMax:   jf.SalaryMax,
			IsRemote:    jf.IsRemote,
			JobType:     jf.JobType,
			Status:      jf.Status,
			CreatedAt:   types.UnixMilli(now),
			UpdatedAt:   types.UnixMilli(now),
		}
		job.initRelations()

		if jf.PublishedAt != "" {
			publishedAt, err := time.Parse(time.RFC3339, jf.PublishedAt)
			if err != nil {
				return nil, err
			}
			job.PublishedAt = types.UnixMilli(publishedAt)
		}

		for _, name := range dedup(jf.Languages) {
			l, ok := languages[name]
			if !ok {
				l = &Language{ID: int64(len(languages) + 1), Name: name}
				languages[name] = l
			}
			job.Languages = append(job.Languages, l)
		}

		for _, lf := range dedup(jf.Locations) {
			l, ok := locations[lf]
			if !ok {
				l = &Location{ID: int64(len(locations) + 1), City: lf.City, State: lf.State, Country: lf.Country}
				locations[lf] = l
			}
			job.Locations = append(job.Locations, l)
		}

		for _, name := range dedup(jf.Categories) {
			c, ok := categories[name]
			if !ok {
				c = &Category{ID: int64(len(categories) + 1), Name: name}
				categories[name] = c
			}
			job.Categories = append(job.Categories, c)
		}

		names := make([]string, 0, len(jf.Attributes))
		for name := range jf.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			attr, ok := attributes[name]
			if !ok {
				attr = &Attribute{ID: int64(len(attributes) + 1), Name: name, Type: AttributeText}
				attributes[name] = attr
			}

			attributeValueID++
			job.Attributes = append(job.Attributes, &AttributeValue{
				ID:          attributeValueID,
				JobID:       job.ID,
				AttributeID: attr.ID,
				Value:       jf.Attributes[name],
				Attribute:   *attr,
			})
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// dedup returns the elements of s without duplicates, keeping the order of their first occurrence.
func dedup[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	out := make([]T, 0, len(s))
	for _, e := range s {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}

	return out
}

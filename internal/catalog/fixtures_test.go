package catalog

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func TestParseFixtures(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		f, err := ParseFixtures(strings.NewReader("jobs:\n  - title: Plumber\nattributes:\n  - name: shift\n"))
		require.NoError(t, err)

		require.Len(t, f.Jobs, 1)
		assert.Equal(t, JobTypeFullTime, f.Jobs[0].JobType)
		assert.Equal(t, StatusPublished, f.Jobs[0].Status)

		require.Len(t, f.Attributes, 1)
		assert.Equal(t, AttributeText, f.Attributes[0].Type)
	})

	invalid := []struct {
		name string
		yaml string
	}{
		{name: "job-type", yaml: "jobs:\n  - title: x\n    job_type: gig\n"},
		{name: "status", yaml: "jobs:\n  - title: x\n    status: deleted\n"},
		{name: "title", yaml: "jobs:\n  - company_name: x\n"},
		{name: "published-at", yaml: "jobs:\n  - title: x\n    published_at: yesterday\n"},
		{name: "attribute-type", yaml: "attributes:\n  - name: x\n    type: blob\n"},
		{name: "attribute-name", yaml: "attributes:\n  - type: text\n"},
		{name: "syntax", yaml: "jobs: [\n"},
	}

	for _, tt := range invalid {
		t.Run("invalid-"+tt.name, func(t *testing.T) {
			_, err := ParseFixtures(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFixtures_ToJobs(t *testing.T) {
	t.Parallel()

	f, err := LoadFixtures("testdata/jobs.yml")
	require.NoError(t, err)

	now := time.UnixMilli(1700000000000)
	jobs, err := f.ToJobs(now)
	require.NoError(t, err)
	require.Len(t, jobs, 5)

	first := jobs[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "Acme", first.CompanyName)
	require.NotNil(t, first.SalaryMin)
	assert.Equal(t, 90000.0, *first.SalaryMin)
	assert.True(t, first.IsRemote)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).UnixMilli(), first.PublishedAt.Time().UnixMilli())
	assert.Equal(t, now.UnixMilli(), first.CreatedAt.Time().UnixMilli())

	require.Len(t, first.Attributes, 2)
	assert.Equal(t, "level", first.Attributes[0].Attribute.Name, "attributes must be sorted by name")
	assert.Equal(t, AttributeSelect, first.Attributes[0].Attribute.Type)
	assert.Equal(t, `["junior","mid","senior"]`, first.Attributes[0].Attribute.Options.String)
	assert.Equal(t, "years_experience", first.Attributes[1].Attribute.Name)
	assert.Equal(t, AttributeNumber, first.Attributes[1].Attribute.Type)
	assert.Equal(t, "5", first.Attributes[1].Value)

	// JavaScript is shared by the first two jobs.
	assert.Equal(t, first.Languages[1].ID, jobs[1].Languages[0].ID)
	assert.Equal(t, "JavaScript", jobs[1].Languages[0].Name)

	assert.Nil(t, jobs[2].SalaryMax)
	assert.True(t, jobs[3].PublishedAt.Time().IsZero())
	assert.Empty(t, jobs[3].Attributes)
	assert.NotNil(t, jobs[3].Attributes)
}

func TestFixtures_ToJobs_UndeclaredAttribute(t *testing.T) {
	t.Parallel()

	f, err := ParseFixtures(strings.NewReader("jobs:\n  - title: x\n    attributes:\n      shift: night\n"))
	require.NoError(t, err)

	jobs, err := f.ToJobs(time.Now())
	require.NoError(t, err)

	require.Len(t, jobs[0].Attributes, 1)
	assert.Equal(t, AttributeText, jobs[0].Attributes[0].Attribute.Type)
	assert.False(t, jobs[0].Attributes[0].Attribute.Options.Valid)
}

func TestDedup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"b", "a"}, dedup([]string{"b", "a", "b", "a"}))
	assert.Equal(t, []string{}, dedup[string](nil))
}

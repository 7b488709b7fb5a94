package catalog

import (
	"errors"
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"math"
	"net/url"
	"strconv"
)

// DefaultPerPage is the page size used when a Query doesn't specify one.
const DefaultPerPage = 10

// ErrNotFound is returned when a single requested job doesn't exist.
var ErrNotFound = errors.New("job not found")

// Query describes a single page of filtered jobs.
type Query struct {
	Filter  string
	Page    int // Page is 1-based.
	PerPage int
}

// normalize replaces out of range values by their defaults.
func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}

	return q
}

// offset returns the number of jobs preceding the page. Returns false if the page lies so far beyond
// any possible result that the offset or the end of the page overflows an int.
func (q Query) offset() (int, bool) {
	if q.Page-1 > (math.MaxInt-q.PerPage)/q.PerPage {
		return 0, false
	}

	return (q.Page - 1) * q.PerPage, true
}

// Page is a single page of jobs as encoded in the responses of the HTTP API.
//
// The URL fields are only set after SetURLs has been called.
type Page struct {
	CurrentPage  int     `json:"current_page"`
	Data         []*Job  `json:"data"`
	FirstPageURL string  `json:"first_page_url"`
	From         *int    `json:"from"`
	LastPage     int     `json:"last_page"`
	LastPageURL  string  `json:"last_page_url"`
	NextPageURL  *string `json:"next_page_url"`
	Path         string  `json:"path"`
	PerPage      int     `json:"per_page"`
	PrevPageURL  *string `json:"prev_page_url"`
	To           *int    `json:"to"`
	Total        int64   `json:"total"`

	// Filter is the parsed filter of the query, including all diagnostics collected while compiling it.
	Filter *filter.Filter `json:"-"`
}

func newPage(q Query, total int64, data []*Job, f *filter.Filter) *Page {
	if data == nil {
		data = []*Job{}
	}

	p := &Page{
		CurrentPage: q.Page,
		Data:        data,
		LastPage:    1,
		PerPage:     q.PerPage,
		Total:       total,
		Filter:      f,
	}
	if total > 0 {
		p.LastPage = int((total-1)/int64(q.PerPage) + 1)
	}

	if offset, ok := q.offset(); ok && len(data) > 0 {
		from, to := offset+1, offset+len(data)
		p.From, p.To = &from, &to
	}

	return p
}

// SetURLs fills in the URLs of the neighbouring pages based on the URL the page was requested with.
// All query parameters except page are retained.
func (p *Page) SetURLs(requested *url.URL) {
	base := *requested
	base.RawQuery = ""
	base.Fragment = ""
	p.Path = base.String()

	pageURL := func(page int) string {
		query := requested.Query()
		query.Set("page", strconv.Itoa(page))

		u := base
		u.RawQuery = query.Encode()

		return u.String()
	}

	p.FirstPageURL = pageURL(1)
	p.LastPageURL = pageURL(p.LastPage)

	if p.CurrentPage < p.LastPage {
		next := pageURL(p.CurrentPage + 1)
		p.NextPageURL = &next
	}
	if p.CurrentPage > 1 {
		prev := pageURL(p.CurrentPage - 1)
		p.PrevPageURL = &prev
	}
}

package model

import "time"

// NotSpecified marks an attribute that was looked for but could not be determined.
const NotSpecified = "Not specified"

// Listing is a search result entry before enrichment.
type Listing struct {
	Link     string `json:"job_link"`
	Title    string `json:"job_title"`
	Company  string `json:"company_name"`
	Location string `json:"location"`
	PostedAt string `json:"posted_at"`
}

// JobRecord is one persisted posting. Key is the canonical link.
type JobRecord struct {
	Key         string    `json:"job_link"`
	Title       string    `json:"job_title"`
	Company     string    `json:"company_name"`
	Location    string    `json:"location"`
	PostedAt    string    `json:"posted_at"`
	Degree      string    `json:"required_degree"`
	Experience  string    `json:"required_years_experience"`
	CollectedAt time.Time `json:"collected_at"`
}

// Enrichment holds the attributes read from a listing's detail page.
// Miss is set when the page itself could not be read.
type Enrichment struct {
	Degree     string
	Experience string
	Miss       string
}

// Normalize fills empty attributes with NotSpecified.
func (e Enrichment) Normalize() Enrichment {
	if e.Degree == "" {
		e.Degree = NotSpecified
	}
	if e.Experience == "" {
		e.Experience = NotSpecified
	}
	return e
}

// NewRecord builds an unstamped record from a listing and its enrichment.
func NewRecord(key string, l Listing, e Enrichment) JobRecord {
	e = e.Normalize()
	return JobRecord{
		Key:        key,
		Title:      l.Title,
		Company:    l.Company,
		Location:   l.Location,
		PostedAt:   l.PostedAt,
		Degree:     e.Degree,
		Experience: e.Experience,
	}
}

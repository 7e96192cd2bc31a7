package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/baxromumarov/job-collector/internal/urlutil"
)

// Store persists job records. It is append-only: records whose key is already
// present are skipped, never updated.
type Store interface {
	// LoadAll returns every record in insertion order. A store that was never
	// written is empty, not an error.
	LoadAll(ctx context.Context) ([]model.JobRecord, error)
	ExistingKeys(ctx context.Context) (map[string]struct{}, error)
	// AppendAll persists records in order in one atomic step.
	AppendAll(ctx context.Context, records []model.JobRecord) error
	// Reset empties the store. Calling it on an empty store is a no-op.
	Reset(ctx context.Context) error
	// Export writes the persisted table as CSV.
	Export(ctx context.Context, w io.Writer) error
	Close() error
}

// Open returns the backend selected by driver: "csv" (the default) or a SQL driver.
func Open(ctx context.Context, driver, csvPath, dsn string) (Store, error) {
	switch driver {
	case "", "csv":
		return NewCSVStore(csvPath), nil
	default:
		return OpenSQL(ctx, driver, dsn)
	}
}

// StorageError reports that the persisted table could not be read or written.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Columns is the persisted column layout, shared by every backend's export.
var Columns = []string{
	"job_link",
	"job_title",
	"company_name",
	"location",
	"posted_at",
	"required_degree",
	"required_years_experience",
	"collected_at",
}

func recordRow(r model.JobRecord) []string {
	collected := ""
	if !r.CollectedAt.IsZero() {
		collected = r.CollectedAt.UTC().Format(timeLayout)
	}
	return []string{
		r.Key,
		r.Title,
		r.Company,
		r.Location,
		r.PostedAt,
		sentinel(r.Degree),
		sentinel(r.Experience),
		collected,
	}
}

func sentinel(v string) string {
	if v == "" {
		return model.NotSpecified
	}
	return v
}

func canonicalKey(link string) string {
	if k, err := urlutil.JobKey(link); err == nil {
		return k
	}
	return strings.TrimSpace(link)
}

// canonicalKeys normalises stored links, so rows written by older versions or by
// hand still deduplicate against freshly derived keys.
func canonicalKeys(links []string) map[string]struct{} {
	keys := make(map[string]struct{}, len(links))
	for _, link := range links {
		if k := canonicalKey(link); k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}

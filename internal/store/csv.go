package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/baxromumarov/job-collector/internal/model"
)

const timeLayout = time.RFC3339Nano

var errNoLinkColumn = errors.New("header has no job_link column")

// CSVStore keeps records in a single CSV file. Every write replaces the file
// through a rename, so readers see either the old or the new table.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) LoadAll(ctx context.Context) ([]model.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

// ExistingKeys normalises stored links so files written by older versions, which
// kept LinkedIn country hosts, still deduplicate.
func (s *CSVStore) ExistingKeys(ctx context.Context) (map[string]struct{}, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return keySet(records), nil
}

func (s *CSVStore) AppendAll(ctx context.Context, records []model.JobRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return err
	}
	keys := keySet(existing)
	added := 0
	for _, r := range records {
		k := canonicalKey(r.Key)
		if k == "" {
			continue
		}
		if _, ok := keys[k]; ok {
			continue
		}
		keys[k] = struct{}{}
		existing = append(existing, r)
		added++
	}
	if added == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.replace(existing)
}

func (s *CSVStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(nil)
}

// Export copies the file as stored; a store never written exports the header only.
func (s *CSVStore) Export(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return writeTable(w, nil)
	}
	if err != nil {
		return &StorageError{Op: "export", Path: s.path, Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return &StorageError{Op: "export", Path: s.path, Err: err}
	}
	return nil
}

func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) read() ([]model.JobRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := idx["job_link"]; !ok {
		return nil, &StorageError{Op: "read", Path: s.path, Err: errNoLinkColumn}
	}

	var records []model.JobRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &StorageError{Op: "read", Path: s.path, Err: err}
		}
		field := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		rec := model.JobRecord{
			Key:         strings.TrimSpace(field("job_link")),
			Title:       field("job_title"),
			Company:     field("company_name"),
			Location:    field("location"),
			PostedAt:    field("posted_at"),
			Degree:      sentinel(field("required_degree")),
			Experience:  sentinel(field("required_years_experience")),
			CollectedAt: parseCollectedAt(strings.TrimSpace(field("collected_at"))),
		}
		if rec.Key == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) replace(records []model.JobRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeTable(tmp, records); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// writeTable renders records in the persisted column layout.
func writeTable(w io.Writer, records []model.JobRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return fmt.Errorf("write %s: %w", r.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseCollectedAt(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func keySet(records []model.JobRecord) map[string]struct{} {
	links := make([]string, len(records))
	for i, r := range records {
		links[i] = r.Key
	}
	return canonicalKeys(links)
}

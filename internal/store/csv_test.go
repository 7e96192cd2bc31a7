package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var collected = time.Date(2026, 10, 12, 8, 30, 15, 0, time.UTC)

func rec(key, title string) model.JobRecord {
	return model.JobRecord{
		Key:         key,
		Title:       title,
		Company:     "Acme",
		Location:    "Tel Aviv, Israel",
		PostedAt:    "2026-10-10",
		Degree:      "Master",
		Experience:  "3 years",
		CollectedAt: collected,
	}
}

func newTestCSV(t *testing.T) *CSVStore {
	t.Helper()
	return NewCSVStore(filepath.Join(t.TempDir(), "data", "linkedin_jobs.csv"))
}

func TestCSVStoreMissingFileIsEmpty(t *testing.T) {
	s := newTestCSV(t)
	ctx := context.Background()

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	keys, err := s.ExistingKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, &buf))
	assert.Equal(t, "job_link,job_title,company_name,location,posted_at,required_degree,required_years_experience,collected_at\n", buf.String())
}

func TestCSVStoreAppendRoundTrip(t *testing.T) {
	s := newTestCSV(t)
	ctx := context.Background()

	first := []model.JobRecord{
		rec("https://linkedin.com/jobs/view/1", "Data Scientist"),
		rec("https://linkedin.com/jobs/view/2", `Analyst, "Growth"`),
	}
	require.NoError(t, s.AppendAll(ctx, first))
	require.NoError(t, s.AppendAll(ctx, []model.JobRecord{rec("https://linkedin.com/jobs/view/3", "ML Engineer")}))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, first[0], records[0])
	assert.Equal(t, first[1], records[1])
	assert.Equal(t, "ML Engineer", records[2].Title)

	keys, err := s.ExistingKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
	assert.Contains(t, keys, "https://linkedin.com/jobs/view/2")

	t.Run("sub-second collected_at and padded fields", func(t *testing.T) {
		s := newTestCSV(t)
		r := rec("https://linkedin.com/jobs/view/9", " Senior DS ")
		r.Company = "  Acme  "
		r.CollectedAt = time.Date(2026, 10, 12, 9, 15, 30, 500_000_000, time.UTC)
		require.NoError(t, s.AppendAll(ctx, []model.JobRecord{r}))

		got, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.JobRecord{r}, got)
	})
}

func TestCSVStoreSkipsExistingKeys(t *testing.T) {
	s := newTestCSV(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAll(ctx, []model.JobRecord{rec("https://linkedin.com/jobs/view/1", "Original")}))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	dup := rec("https://linkedin.com/jobs/view/1", "Changed")
	require.NoError(t, s.AppendAll(ctx, []model.JobRecord{dup}))

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCSVStoreEmptyFieldsLoadAsSentinel(t *testing.T) {
	s := newTestCSV(t)
	ctx := context.Background()

	r := rec("https://linkedin.com/jobs/view/1", "Data Scientist")
	r.Degree = ""
	r.Experience = ""
	require.NoError(t, s.AppendAll(ctx, []model.JobRecord{r}))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.NotSpecified, records[0].Degree)
	assert.Equal(t, model.NotSpecified, records[0].Experience)
}

func TestCSVStoreLoadsLegacyLayout(t *testing.T) {
	s := newTestCSV(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))

	legacy := "collected_at,job_title,company_name,location,required_degree,required_years_experience,job_link\n" +
		"2026-09-01T10:00:00.123456+00:00,Data Scientist,Acme,Israel,Bachelor,2 years,https://il.linkedin.com/jobs/view/data-scientist-1\n" +
		"2026-09-01T10:00:00.123456+00:00,Analyst,Globex,Israel,,,https://il.linkedin.com/jobs/view/analyst-2\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o644))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Data Scientist", records[0].Title)
	assert.Equal(t, "Bachelor", records[0].Degree)
	assert.Equal(t, "", records[0].PostedAt)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 123456000, time.UTC), records[0].CollectedAt)
	assert.Equal(t, model.NotSpecified, records[1].Degree)

	keys, err := s.ExistingKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "https://linkedin.com/jobs/view/data-scientist-1")

	// the same posting seen through another country host is not appended again
	require.NoError(t, s.AppendAll(ctx, []model.JobRecord{rec("https://linkedin.com/jobs/view/data-scientist-1", "Data Scientist")}))
	records, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCSVStoreReset(t *testing.T) {
	s := newTestCSV(t)
	ctx := context.Background()

	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.AppendAll(ctx, []model.JobRecord{rec("https://linkedin.com/jobs/view/1", "Data Scientist")}))
	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Reset(ctx))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "job_link,job_title,company_name,location,posted_at,required_degree,required_years_experience,collected_at\n", string(raw))
}

func TestCSVStoreExportMatchesFile(t *testing.T) {
	s := newTestCSV(t)
	ctx := context.Background()
	require.NoError(t, s.AppendAll(ctx, []model.JobRecord{rec("https://linkedin.com/jobs/view/1", "Data Scientist")}))

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, &buf))
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, raw, buf.Bytes())
	assert.Contains(t, buf.String(), "https://linkedin.com/jobs/view/1,Data Scientist,Acme,\"Tel Aviv, Israel\",2026-10-10,Master,3 years,2026-10-12T08:30:15Z")
}

func TestCSVStoreUnwritableIsStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	s := NewCSVStore(filepath.Join(blocker, "jobs.csv"))

	err := s.AppendAll(context.Background(), []model.JobRecord{rec("https://linkedin.com/jobs/view/1", "Data Scientist")})
	var se *StorageError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, s.Path(), se.Path)
}

func TestCSVStoreMissingLinkColumn(t *testing.T) {
	s := newTestCSV(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("title,company\nx,y\n"), 0o644))

	_, err := s.LoadAll(context.Background())
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "read", se.Op)
}

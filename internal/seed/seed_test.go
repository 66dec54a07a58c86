package seed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/board/boardtest"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/ingest"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/utils"
)

func strPtr(s string) *string {
	return &s
}

func TestSampleWorkbookIsIngestible(t *testing.T) {
	entries := []domain.ScheduleEntry{
		{Person: "Wang Wei", Test: "Density", Date: "2024-06-01", Time: strPtr("08:30"), ZipCode: strPtr("02139")},
		{Person: "Li Na", Test: "Proctor", Date: "2024-12-31", Location: strPtr("North Campus")},
		{Person: "Zhang Mingjie", Test: "Density", Date: "2025-01-01", MEP: strPtr("Plumbing risers")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSampleWorkbook(&buf, entries))

	result, err := ingest.Ingest(buf.Bytes(), "sample.xlsx", ingest.Options{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)
	assert.Zero(t, result.ErrorCount())

	for i, e := range result.Entries {
		assert.Equal(t, entries[i].Person, e.Person)
		assert.Equal(t, entries[i].Test, e.Test)
		assert.Equal(t, entries[i].Date, e.Date)
	}
	assert.Equal(t, "08:30", *result.Entries[0].Time)
	assert.Equal(t, "02139", *result.Entries[0].ZipCode)
	assert.Nil(t, result.Entries[0].Location)
	assert.Equal(t, "North Campus", *result.Entries[1].Location)
	assert.Equal(t, "Plumbing risers", *result.Entries[2].MEP)
}

func TestSampleWorkbookRejectsInvalidDate(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSampleWorkbook(&buf, []domain.ScheduleEntry{{Person: "A", Test: "B", Date: "June 1"}})
	assert.Error(t, err)
}

func TestRandomWorkbookRoundTrip(t *testing.T) {
	entries := utils.GenerateRandomEntries(40, utils.GenerateRandomPeople(4), time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, WriteSampleWorkbook(&buf, entries))

	result, err := ingest.Ingest(buf.Bytes(), "random.xlsx", ingest.Options{})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 40)
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "week.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Name,Test\n2024-06-02,Bob,Density\n2024-06-01,Alice,Proctor\n"), 0o644))

	store := boardtest.NewMemoryStore()
	result, err := ImportFile(context.Background(), store, path, ingest.Options{})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)

	stored := store.Entries()
	require.Len(t, stored, 2)
	assert.Equal(t, "Alice", stored[0].Person)
}

func TestImportFileDoesNotWriteOnIngestError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "week.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,Test\nBob,Density\n"), 0o644))

	store := boardtest.NewMemoryStore()
	_, err := ImportFile(context.Background(), store, path, ingest.Options{})

	var missing *ingest.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Empty(t, store.Entries())
}

func TestImportFileMissing(t *testing.T) {
	_, err := ImportFile(context.Background(), boardtest.NewMemoryStore(), filepath.Join(t.TempDir(), "nope.xlsx"), ingest.Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/model"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testReader() *Reader {
	return NewReader(config.IngestConfig{TrimSpace: true})
}

func TestReadFile_ParsesValidRows(t *testing.T) {
	path := writeCSV(t, `date,state,district,pincode,category,count
06-01-2025,Kerala,Idukki,685501,enrolment,12
07-01-2025,kerala,IDUKKI,685501,biometric,3
`)

	records, summary, err := testReader().ReadFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 2, summary.Parsed)
	assert.Equal(t, 0, summary.Dropped)

	assert.Equal(t, model.UnitKey{Region: "Kerala", Name: "Idukki"}, records[0].Unit)
	assert.Equal(t, records[0].Unit, records[1].Unit, "case variants must collapse")
	assert.Equal(t, model.CategoryEnrollment, records[0].Category)
	assert.Equal(t, int64(12), records[0].Count)
	assert.Equal(t, "685", records[0].PinRegion)
	assert.Equal(t, model.WeekKey{Year: 2025, Week: 2}, records[0].Week())
}

func TestReadFile_MalformedRowsDroppedAndCounted(t *testing.T) {
	path := writeCSV(t, `date,state,district,pincode,category,count
06-01-2025,Kerala,Idukki,685501,enrolment,12
not-a-date,Kerala,Idukki,685501,enrolment,5
06-01-2025,,Idukki,685501,enrolment,5
06-01-2025,Kerala,Idukki,685501,postal,5
06-01-2025,Kerala,Idukki,685501,enrolment,-4
06-01-2025,Kerala,Idukki,685501,enrolment,many
`)

	records, summary, err := testReader().ReadFile(context.Background(), path)
	require.NoError(t, err, "malformed rows must not fail the run")

	assert.Len(t, records, 1)
	assert.Equal(t, 1, summary.Parsed)
	assert.Equal(t, 5, summary.Dropped)
	assert.Equal(t, 1, summary.DropsBy[DropBadDate])
	assert.Equal(t, 1, summary.DropsBy[DropBadUnit])
	assert.Equal(t, 1, summary.DropsBy[DropBadCategory])
	assert.Equal(t, 2, summary.DropsBy[DropBadCount])
}

func TestReadFile_AgeBandColumnsSummed(t *testing.T) {
	path := writeCSV(t, `date,state,district,pincode,age_0_5,age_5_17,age_18_greater
06-01-2025,Kerala,Idukki,685501,3,4,5
`)

	rd := NewReader(config.IngestConfig{TrimSpace: true, DefaultCategory: "enrolment"})
	records, summary, err := rd.ReadFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, int64(12), records[0].Count)
	assert.Equal(t, model.CategoryEnrollment, records[0].Category)
	assert.Equal(t, 1, summary.Parsed)
}

func TestReadFile_MissingCategoryWithoutDefaultDropped(t *testing.T) {
	path := writeCSV(t, `date,state,district,pincode,count
06-01-2025,Kerala,Idukki,685501,7
`)

	records, summary, err := testReader().ReadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, records)
	assert.Equal(t, 1, summary.DropsBy[DropBadCategory])
}

func TestReadFile_HeaderMissingRequiredColumns(t *testing.T) {
	path := writeCSV(t, `state,district,count
Kerala,Idukki,7
`)

	_, _, err := testReader().ReadFile(context.Background(), path)
	assert.Error(t, err)
}

func TestReadFiles_SortedAndMerged(t *testing.T) {
	dir := t.TempDir()
	pathB := filepath.Join(dir, "b.csv")
	pathA := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(pathB, []byte("date,state,district,pincode,category,count\n06-01-2025,Kerala,Kollam,691001,demo,2\n"), 0o644))
	require.NoError(t, os.WriteFile(pathA, []byte("date,state,district,pincode,category,count\n06-01-2025,Kerala,Idukki,685501,bio,1\n"), 0o644))

	records, summary, err := testReader().ReadFiles(context.Background(), []string{pathB, pathA})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 2, summary.Parsed)
	// a.csv sorts before b.csv regardless of argument order.
	assert.Equal(t, "Idukki", records[0].Unit.Name)
}

func TestNormalizePincode(t *testing.T) {
	pin, region := normalizePincode("1234")
	assert.Equal(t, "001234", pin)
	assert.Equal(t, "001", region)

	pin, region = normalizePincode("")
	assert.Empty(t, pin)
	assert.Empty(t, region)
}

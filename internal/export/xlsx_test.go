package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestWriteWorkbook(t *testing.T) {
	idukki := model.UnitKey{Region: "Kerala", Name: "Idukki"}
	kollam := model.UnitKey{Region: "Kerala", Name: "Kollam"}
	w5 := model.WeekKey{Year: 2025, Week: 5}

	rs := &model.ResultSet{
		Aggregates: []model.WeeklyAggregate{
			{Unit: idukki, Week: w5, Enrollment: 5, Demographic: 3, Biometric: 2, Total: 10},
		},
		Scores: []model.MSIScore{
			{Unit: idukki, Week: w5, MSI: 0.42, InverseCorrelation: 0.84, SpatialSpread: 1.0, AnomalyTerm: 0.25, Neighbors: 1},
		},
		Waves: []model.WavePattern{
			{
				Origin:     idukki,
				OriginWeek: w5,
				Affected: []model.WaveHit{
					{Unit: idukki, FirstWeek: w5, MSI: 0.42},
					{Unit: kollam, FirstWeek: model.WeekKey{Year: 2025, Week: 6}, MSI: 0.35},
				},
				SpanWeeks: 3,
				MeanMSI:   0.385,
				Score:     4.8,
			},
		},
		Hotspots: []model.HotspotScore{
			{Rank: 1, Unit: idukki, Score: 0.9, PeakMSI: 0.42, ActiveWeeks: 2, MeanSpread: 1.0},
		},
	}

	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteWorkbook(path, rs))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)
	assert.Equal(t, "Weekly Aggregates", f.Sheets[0].Name)
	assert.Equal(t, "MSI Scores", f.Sheets[1].Name)
	assert.Equal(t, "Wave Patterns", f.Sheets[2].Name)
	assert.Equal(t, "Hotspots", f.Sheets[3].Name)

	// Header plus one data row on each sheet.
	aggSheet := f.Sheets[0]
	require.Len(t, aggSheet.Rows, 2)
	assert.Equal(t, "Region", aggSheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "Idukki", aggSheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "2025-W05", aggSheet.Rows[1].Cells[2].Value)

	waveSheet := f.Sheets[2]
	require.Len(t, waveSheet.Rows, 2)
	assert.Contains(t, waveSheet.Rows[1].Cells[7].Value, "Kerala|Kollam (2025-W06)")
}

func TestWriteWorkbook_EmptyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteWorkbook(path, &model.ResultSet{}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)
	for _, sheet := range f.Sheets {
		assert.Len(t, sheet.Rows, 1, "header only on sheet %s", sheet.Name)
	}
}

// Package export writes a run's result tables to an xlsx workbook.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/model"
)

// WriteWorkbook writes the four result tables to path, one sheet per
// table. Row order follows the stable order of the result set, so
// exporting the same run twice produces identical workbooks.
func WriteWorkbook(path string, rs *model.ResultSet) error {
	f := xlsx.NewFile()

	if err := writeAggregates(f, rs.Aggregates); err != nil {
		return err
	}
	if err := writeScores(f, rs.Scores); err != nil {
		return err
	}
	if err := writeWaves(f, rs.Waves); err != nil {
		return err
	}
	if err := writeHotspots(f, rs.Hotspots); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}

	zap.L().Info("export: workbook written",
		zap.String("path", path),
		zap.Int("aggregates", len(rs.Aggregates)),
		zap.Int("scores", len(rs.Scores)),
		zap.Int("waves", len(rs.Waves)),
		zap.Int("hotspots", len(rs.Hotspots)),
	)
	return nil
}

func addHeader(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func writeAggregates(f *xlsx.File, aggs []model.WeeklyAggregate) error {
	sheet, err := f.AddSheet("Weekly Aggregates")
	if err != nil {
		return eris.Wrap(err, "export: add aggregates sheet")
	}
	addHeader(sheet, "Region", "District", "Week", "Enrollment", "Demographic", "Biometric", "Total")
	for _, a := range aggs {
		row := sheet.AddRow()
		row.AddCell().SetString(a.Unit.Region)
		row.AddCell().SetString(a.Unit.Name)
		row.AddCell().SetString(a.Week.String())
		row.AddCell().SetInt64(a.Enrollment)
		row.AddCell().SetInt64(a.Demographic)
		row.AddCell().SetInt64(a.Biometric)
		row.AddCell().SetInt64(a.Total)
	}
	return nil
}

func writeScores(f *xlsx.File, scores []model.MSIScore) error {
	sheet, err := f.AddSheet("MSI Scores")
	if err != nil {
		return eris.Wrap(err, "export: add scores sheet")
	}
	addHeader(sheet, "Region", "District", "Week", "MSI", "Inverse Correlation", "Spatial Spread", "Anomaly Term", "Rel Change", "Neighbor Rel Change", "Neighbors")
	for _, sc := range scores {
		row := sheet.AddRow()
		row.AddCell().SetString(sc.Unit.Region)
		row.AddCell().SetString(sc.Unit.Name)
		row.AddCell().SetString(sc.Week.String())
		row.AddCell().SetFloat(sc.MSI)
		row.AddCell().SetFloat(sc.InverseCorrelation)
		row.AddCell().SetFloat(sc.SpatialSpread)
		row.AddCell().SetFloat(sc.AnomalyTerm)
		row.AddCell().SetFloat(sc.RelChange)
		row.AddCell().SetFloat(sc.NeighborRelChange)
		row.AddCell().SetInt(sc.Neighbors)
	}
	return nil
}

func writeWaves(f *xlsx.File, waves []model.WavePattern) error {
	sheet, err := f.AddSheet("Wave Patterns")
	if err != nil {
		return eris.Wrap(err, "export: add waves sheet")
	}
	addHeader(sheet, "Origin Region", "Origin District", "Origin Week", "Affected Units", "Span Weeks", "Mean MSI", "Score", "Affected")
	for _, w := range waves {
		hits := make([]string, len(w.Affected))
		for i, h := range w.Affected {
			hits[i] = fmt.Sprintf("%s (%s)", h.Unit, h.FirstWeek)
		}
		row := sheet.AddRow()
		row.AddCell().SetString(w.Origin.Region)
		row.AddCell().SetString(w.Origin.Name)
		row.AddCell().SetString(w.OriginWeek.String())
		row.AddCell().SetInt(len(w.Affected))
		row.AddCell().SetInt(w.SpanWeeks)
		row.AddCell().SetFloat(w.MeanMSI)
		row.AddCell().SetFloat(w.Score)
		row.AddCell().SetString(strings.Join(hits, "; "))
	}
	return nil
}

func writeHotspots(f *xlsx.File, hotspots []model.HotspotScore) error {
	sheet, err := f.AddSheet("Hotspots")
	if err != nil {
		return eris.Wrap(err, "export: add hotspots sheet")
	}
	addHeader(sheet, "Rank", "Region", "District", "Score", "Peak MSI", "Active Weeks", "Mean Spread")
	for _, h := range hotspots {
		row := sheet.AddRow()
		row.AddCell().SetInt(h.Rank)
		row.AddCell().SetString(h.Unit.Region)
		row.AddCell().SetString(h.Unit.Name)
		row.AddCell().SetFloat(h.Score)
		row.AddCell().SetFloat(h.PeakMSI)
		row.AddCell().SetInt(h.ActiveWeeks)
		row.AddCell().SetFloat(h.MeanSpread)
	}
	return nil
}

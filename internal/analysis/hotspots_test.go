package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/msi-cli/internal/model"
)

func hotspotScore(u model.UnitKey, w int, msi, spread float64) model.MSIScore {
	return model.MSIScore{Unit: u, Week: week(w), MSI: msi, SpatialSpread: spread}
}

func TestRankHotspots_CompositeOrdering(t *testing.T) {
	a := unit("Kerala", "Idukki")
	b := unit("Kerala", "Kollam")
	c := unit("Kerala", "Thrissur")

	scores := []model.MSIScore{
		hotspotScore(a, 1, 0.6, 1.0),
		hotspotScore(a, 2, 0.3, 0.5),
		hotspotScore(a, 3, 0.2, 0.5),
		hotspotScore(b, 1, 0.4, 0.5),
		hotspotScore(b, 2, 0.1, 0.9), // below moderate, not an active week
		hotspotScore(c, 1, 0.05, 0.2),
	}

	hotspots := RankHotspots(scores, testCfg())
	require.Len(t, hotspots, 3)

	assert.Equal(t, []model.UnitKey{a, b, c}, []model.UnitKey{
		hotspots[0].Unit, hotspots[1].Unit, hotspots[2].Unit,
	})
	for i, h := range hotspots {
		assert.Equal(t, i+1, h.Rank)
	}

	top := hotspots[0]
	assert.Equal(t, 0.6, top.PeakMSI)
	assert.Equal(t, 3, top.ActiveWeeks)
	assert.InDelta(t, 2.0/3.0, top.MeanSpread, 1e-9)
	// Best on every rescaled component.
	assert.InDelta(t, 1.0, top.Score, 1e-9)

	// b: peak (0.4-0.05)/0.55, frequency 1/3, spread 0.5/(2/3), at 0.4/0.3/0.3.
	assert.InDelta(t, 0.4*(0.35/0.55)+0.3*(1.0/3.0)+0.3*0.75, hotspots[1].Score, 1e-9)

	bottom := hotspots[2]
	assert.Equal(t, 0, bottom.ActiveWeeks)
	assert.Equal(t, 0.0, bottom.Score)
}

func TestRankHotspots_TiesBreakOnUnitIdentity(t *testing.T) {
	a := unit("Kerala", "Idukki")
	b := unit("Goa", "Panaji")

	// Identical histories rescale to identical composites.
	scores := []model.MSIScore{
		hotspotScore(a, 1, 0.3, 0.5),
		hotspotScore(b, 1, 0.3, 0.5),
	}

	hotspots := RankHotspots(scores, testCfg())
	require.Len(t, hotspots, 2)
	assert.Equal(t, hotspots[0].Score, hotspots[1].Score)
	assert.Equal(t, b, hotspots[0].Unit, "Goa|Panaji sorts before Kerala|Idukki")
	assert.Equal(t, a, hotspots[1].Unit)
}

func TestRankHotspots_EmptyScores(t *testing.T) {
	assert.Nil(t, RankHotspots(nil, testCfg()))
}

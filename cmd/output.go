package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/msi-cli/internal/model"
)

// writeOut renders v to stdout in the requested format. The empty format
// and "table" are handled by the callers' tabular formatters.
func writeOut(v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "marshal yaml")
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

// formatHotspots writes a tabular hotspot ranking to w.
func formatHotspots(out io.Writer, hotspots []model.HotspotScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tREGION\tDISTRICT\tSCORE\tPEAK MSI\tACTIVE WEEKS\tMEAN SPREAD")
	for _, h := range hotspots {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%.3f\t%d\t%.2f\n",
			h.Rank, h.Unit.Region, h.Unit.Name, h.Score, h.PeakMSI, h.ActiveWeeks, h.MeanSpread,
		)
	}
	_ = w.Flush()
}

// formatWaves writes a tabular wave list to w.
func formatWaves(out io.Writer, waves []model.WavePattern) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ORIGIN\tWEEK\tUNITS\tSPAN\tMEAN MSI\tSCORE")
	for _, wave := range waves {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.3f\t%.2f\n",
			wave.Origin, wave.OriginWeek, len(wave.Affected), wave.SpanWeeks, wave.MeanMSI, wave.Score,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package ingest

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/msi-cli/internal/config"
	"github.com/sells-group/msi-cli/internal/model"
)

// Drop causes reported in the ingest summary.
const (
	DropShortRow    = "short_row"
	DropBadDate     = "bad_date"
	DropBadUnit     = "bad_unit"
	DropBadCategory = "bad_category"
	DropBadCount    = "bad_count"
)

// Source exports carry dates either in the Indian day-first form or ISO.
var dateLayouts = []string{"02-01-2006", "2006-01-02", "02/01/2006"}

// columns maps the header fields this parser understands to their indexes.
// Any additional columns in the export are ignored.
type columns struct {
	date     int
	region   int
	unit     int
	pincode  int
	category int
	count    int
	ageBands []int // summed into count when no count column exists
}

func mapHeader(header []string) (columns, error) {
	cols := columns{date: -1, region: -1, unit: -1, pincode: -1, category: -1, count: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "timestamp":
			cols.date = i
		case "state", "region":
			cols.region = i
		case "district", "unit":
			cols.unit = i
		case "pincode", "pin_code", "postal_code":
			cols.pincode = i
		case "category", "event", "event_category":
			cols.category = i
		case "count", "total", "total_activity":
			cols.count = i
		default:
			// Category-specific exports split counts into age bands
			// (age_0_5, demo_age_5_17, bio_age_17_, ...).
			if strings.Contains(strings.ToLower(name), "age_") {
				cols.ageBands = append(cols.ageBands, i)
			}
		}
	}
	if cols.date < 0 || cols.region < 0 || cols.unit < 0 {
		return cols, eris.Errorf("ingest: header missing required columns (date/state/district), got %v", header)
	}
	if cols.count < 0 && len(cols.ageBands) == 0 {
		return cols, eris.Errorf("ingest: header has neither a count column nor age-band columns, got %v", header)
	}
	return cols, nil
}

// Reader parses activity exports into validated ActivityRecords.
type Reader struct {
	cfg config.IngestConfig
}

// NewReader creates a Reader with the given ingest configuration.
func NewReader(cfg config.IngestConfig) *Reader {
	return &Reader{cfg: cfg}
}

// ReadFile parses a single CSV export. Malformed rows are dropped and
// counted in the returned summary.
func (rd *Reader) ReadFile(ctx context.Context, path string) ([]model.ActivityRecord, model.IngestSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.IngestSummary{}, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	records, summary, err := rd.readAll(ctx, f)
	if err != nil {
		return nil, summary, eris.Wrapf(err, "ingest: parse %s", path)
	}
	summary.Files = 1
	return records, summary, nil
}

// ReadFiles parses several exports and merges their summaries. Paths are
// processed in sorted order so the record stream is reproducible.
func (rd *Reader) ReadFiles(ctx context.Context, paths []string) ([]model.ActivityRecord, model.IngestSummary, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var all []model.ActivityRecord
	var total model.IngestSummary
	for _, path := range sorted {
		records, summary, err := rd.ReadFile(ctx, path)
		if err != nil {
			return nil, total, err
		}
		all = append(all, records...)
		total.Merge(summary)
	}
	return all, total, nil
}

func (rd *Reader) readAll(ctx context.Context, f *os.File) ([]model.ActivityRecord, model.IngestSummary, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		TrimSpace:  rd.cfg.TrimSpace,
		LazyQuotes: rd.cfg.LazyQuotes,
	})

	var summary model.IngestSummary
	var records []model.ActivityRecord
	var cols columns
	haveCols := false

	for row := range rowCh {
		if !haveCols {
			select {
			case header := <-headerCh:
				c, err := mapHeader(header)
				if err != nil {
					return nil, summary, err
				}
				cols = c
				haveCols = true
			default:
				return nil, summary, eris.New("ingest: data row before header")
			}
		}

		rec, cause := rd.parseRow(row, cols)
		if cause != "" {
			summary.AddDrop(cause)
			continue
		}
		records = append(records, rec)
		summary.Parsed++
	}

	if err := <-errCh; err != nil {
		return nil, summary, err
	}

	// Header of an empty file still needs validating.
	if !haveCols {
		select {
		case header := <-headerCh:
			if _, err := mapHeader(header); err != nil {
				return nil, summary, err
			}
		default:
		}
	}

	if summary.Dropped > 0 {
		zap.L().Warn("ingest: dropped malformed records",
			zap.Int("dropped", summary.Dropped),
			zap.Any("by_cause", summary.DropsBy),
		)
	}
	return records, summary, nil
}

// parseRow validates one data row. It returns a non-empty drop cause
// instead of an error so callers can keep counters per cause.
func (rd *Reader) parseRow(row []string, cols columns) (model.ActivityRecord, string) {
	need := maxIndex(cols)
	if len(row) <= need {
		return model.ActivityRecord{}, DropShortRow
	}

	date, ok := parseDate(row[cols.date])
	if !ok {
		return model.ActivityRecord{}, DropBadDate
	}

	unit, err := model.NormalizeUnit(row[cols.region], row[cols.unit])
	if err != nil {
		return model.ActivityRecord{}, DropBadUnit
	}

	category := model.EventCategory("")
	if cols.category >= 0 {
		category, err = model.ParseCategory(row[cols.category])
	} else if rd.cfg.DefaultCategory != "" {
		category, err = model.ParseCategory(rd.cfg.DefaultCategory)
	} else {
		err = eris.New("no category column and no default category")
	}
	if err != nil {
		return model.ActivityRecord{}, DropBadCategory
	}

	count, ok := parseCount(row, cols)
	if !ok {
		return model.ActivityRecord{}, DropBadCount
	}

	pincode, pinRegion := normalizePincode(rowAt(row, cols.pincode))

	return model.ActivityRecord{
		Unit:      unit,
		Pincode:   pincode,
		PinRegion: pinRegion,
		Date:      date,
		Category:  category,
		Count:     count,
	}, ""
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseCount reads the count column, or sums the age-band columns when the
// export splits counts by age band. Negative counts are malformed.
func parseCount(row []string, cols columns) (int64, bool) {
	if cols.count >= 0 {
		n, err := strconv.ParseInt(strings.TrimSpace(row[cols.count]), 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}

	var sum int64
	for _, i := range cols.ageBands {
		field := strings.TrimSpace(row[i])
		if field == "" {
			continue
		}
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		sum += n
	}
	return sum, true
}

// normalizePincode left-pads numeric pincodes to six digits and extracts
// the 3-digit postal region prefix. The prefix is reporting metadata only;
// adjacency stays the same-region rule.
func normalizePincode(s string) (pincode, pinRegion string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if _, err := strconv.Atoi(s); err == nil && len(s) < 6 {
		s = strings.Repeat("0", 6-len(s)) + s
	}
	if len(s) >= 3 {
		return s, s[:3]
	}
	return s, ""
}

func rowAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func maxIndex(cols columns) int {
	max := cols.date
	for _, i := range []int{cols.region, cols.unit, cols.count, cols.category} {
		if i > max {
			max = i
		}
	}
	for _, i := range cols.ageBands {
		if i > max {
			max = i
		}
	}
	return max
}

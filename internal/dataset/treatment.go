package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// PreparedRow is a dataset row after treatment: date normalized to ISO form
// and a trailing 30-day rolling score mean computed per category.
type PreparedRow struct {
	Critics         string  `parquet:"critics"`
	Scores          int32   `parquet:"scores"`
	Date            string  `parquet:"date"`
	TypesMovie      string  `parquet:"types_movie"`
	RollingScores30 float64 `parquet:"rolling_scores_30d"`
}

// DefaultMinDate is the earliest review date kept by Prepare. The site's
// review-card template predates it, but older entries use inconsistent date
// formats and are not worth keeping.
var DefaultMinDate = time.Date(2014, time.September, 1, 0, 0, 0, 0, time.UTC)

// frMonths maps the site's lowercase French month names to time.Month.
var frMonths = map[string]time.Month{
	"janvier":   time.January,
	"février":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"août":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"décembre":  time.December,
}

// ParseReviewDate parses a raw "12 juin 2021" date string.
func ParseReviewDate(raw string) (time.Time, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("expected day month year, got %q", raw)
	}
	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad day in %q: %w", raw, err)
	}
	month, ok := frMonths[strings.ToLower(fields[1])]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month in %q", raw)
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("bad year in %q: %w", raw, err)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// Prepare turns raw exported rows into the analysis dataset: exact
// duplicates dropped (first occurrence kept), dates parsed and normalized,
// rows before minDate discarded, the rest sorted chronologically, and a
// trailing 30-day rolling score mean attached per category. Rows whose date
// does not parse are dropped and counted, not fatal.
func Prepare(rows []Row, minDate time.Time) []PreparedRow {
	if minDate.IsZero() {
		minDate = DefaultMinDate
	}

	type dated struct {
		row Row
		at  time.Time
	}
	seen := make(map[Row]struct{}, len(rows))
	var kept []dated
	var unparseable, tooOld, duplicates int
	for _, row := range rows {
		if _, ok := seen[row]; ok {
			duplicates++
			continue
		}
		seen[row] = struct{}{}
		at, err := ParseReviewDate(row.Date)
		if err != nil {
			unparseable++
			continue
		}
		if at.Before(minDate) {
			tooOld++
			continue
		}
		kept = append(kept, dated{row: row, at: at})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].at.Before(kept[j].at) })

	// Trailing 30-day mean per category: the rows are date-sorted, so a
	// sliding window per category index list does it in one pass.
	byType := make(map[string][]int)
	for i, d := range kept {
		byType[d.row.TypesMovie] = append(byType[d.row.TypesMovie], i)
	}
	rolling := make([]float64, len(kept))
	const window = 30 * 24 * time.Hour
	for _, idxs := range byType {
		start := 0
		var sum float64
		for end, i := range idxs {
			sum += float64(kept[i].row.Scores)
			for kept[idxs[start]].at.Before(kept[i].at.Add(-window)) {
				sum -= float64(kept[idxs[start]].row.Scores)
				start++
			}
			rolling[i] = sum / float64(end-start+1)
		}
	}

	out := make([]PreparedRow, len(kept))
	for i, d := range kept {
		out[i] = PreparedRow{
			Critics:         d.row.Critics,
			Scores:          d.row.Scores,
			Date:            d.at.Format(time.DateOnly),
			TypesMovie:      d.row.TypesMovie,
			RollingScores30: rolling[i],
		}
	}
	slog.Debug("prepare: treated rows",
		"in", len(rows),
		"out", len(out),
		"duplicates", duplicates,
		"unparseable_dates", unparseable,
		"before_min_date", tooOld,
	)
	return out
}

// ExportPrepared writes treated rows to a Parquet file at path.
func ExportPrepared(rows []PreparedRow, path string) error {
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// ReadPrepared loads a previously treated dataset.
func ReadPrepared(path string) ([]PreparedRow, error) {
	rows, err := parquet.ReadFile[PreparedRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

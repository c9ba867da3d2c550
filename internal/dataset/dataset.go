package dataset

import (
	"errors"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/fmercier/allocine-scraper/internal"
)

// Row is one assembled review record. Column names and order are the
// dataset's contract with downstream analysis and do not change.
type Row struct {
	Critics    string `parquet:"critics"`
	Scores     int32  `parquet:"scores"`
	Date       string `parquet:"date"`
	TypesMovie string `parquet:"types_movie"`
}

// ErrColumnMismatch reports that the four input columns were not the same
// length. Assembly refuses to guess which rows line up.
var ErrColumnMismatch = errors.New("column lengths differ")

// Assemble zips four parallel columns into rows. All columns must be equal
// length: the extraction stage only emits fully resolved reviews, so a
// mismatch here means a bug upstream, not bad site data.
func Assemble(critics []string, scores []int, dates, types []string) ([]Row, error) {
	n := len(critics)
	if len(scores) != n || len(dates) != n || len(types) != n {
		return nil, fmt.Errorf("%w: critics=%d scores=%d dates=%d types=%d",
			ErrColumnMismatch, len(critics), len(scores), len(dates), len(types))
	}
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Critics:    critics[i],
			Scores:     int32(scores[i]),
			Date:       dates[i],
			TypesMovie: types[i],
		}
	}
	return rows, nil
}

// FromReviews assembles rows from extracted reviews, preserving input order.
func FromReviews(reviews []internal.Review) []Row {
	rows := make([]Row, len(reviews))
	for i, r := range reviews {
		rows[i] = Row{
			Critics:    r.Critique,
			Scores:     int32(r.Score),
			Date:       r.Date,
			TypesMovie: r.Genre,
		}
	}
	return rows
}

// Export writes rows to a Parquet file at path, replacing any existing file.
// Row order is preserved as given.
func Export(rows []Row, path string) error {
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// Read loads a previously exported dataset.
func Read(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmercier/allocine-scraper/internal"
)

func TestUnit_Assemble_ZipsEqualColumns(t *testing.T) {
	rows, err := Assemble(
		[]string{"bon", "mauvais"},
		[]int{4, 1},
		[]string{"12 juin 2021", "3 janvier 2020"},
		[]string{"drame", "action"},
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Critics: "bon", Scores: 4, Date: "12 juin 2021", TypesMovie: "drame"}, rows[0])
	assert.Equal(t, Row{Critics: "mauvais", Scores: 1, Date: "3 janvier 2020", TypesMovie: "action"}, rows[1])
}

func TestUnit_Assemble_RejectsMismatchedColumns(t *testing.T) {
	_, err := Assemble(
		[]string{"bon", "mauvais"},
		[]int{4},
		[]string{"12 juin 2021", "3 janvier 2020"},
		[]string{"drame", "action"},
	)
	require.ErrorIs(t, err, ErrColumnMismatch)
}

func TestUnit_FromReviews_PreservesOrder(t *testing.T) {
	in := []internal.Review{
		{ID: "a", Score: 5, Critique: "premier", Date: "1 mai 2022", Genre: "drame"},
		{ID: "b", Score: 2, Critique: "second", Date: "2 mai 2022", Genre: "drame"},
	}
	rows := FromReviews(in)
	require.Len(t, rows, 2)
	assert.Equal(t, "premier", rows[0].Critics)
	assert.Equal(t, int32(5), rows[0].Scores)
	assert.Equal(t, "second", rows[1].Critics)
}

func TestUnit_ExportRead_RoundTrip(t *testing.T) {
	rows := []Row{
		{Critics: "très bien", Scores: 4, Date: "12 juin 2021", TypesMovie: "drame"},
		{Critics: "décevant", Scores: 1, Date: "3 janvier 2020", TypesMovie: "action"},
	}
	path := filepath.Join(t.TempDir(), "reviews.parquet")

	require.NoError(t, Export(rows, path))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestUnit_Export_OverwritesDeterministically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.parquet")

	first := []Row{{Critics: "ancien", Scores: 3, Date: "1 mars 2019", TypesMovie: "drame"}}
	require.NoError(t, Export(first, path))

	second := []Row{{Critics: "nouveau", Scores: 5, Date: "2 mars 2019", TypesMovie: "drame"}}
	require.NoError(t, Export(second, path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, second, got, "re-export replaces the destination")
}

package root

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmercier/allocine-scraper/internal"
	"github.com/fmercier/allocine-scraper/internal/dataset"
)

func TestResolveGenres(t *testing.T) {
	t.Run("defaults when nothing selected", func(t *testing.T) {
		genres, err := resolveGenres(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, defaultGenres, genres)
	})

	t.Run("selection narrows and keeps order", func(t *testing.T) {
		genres, err := resolveGenres([]string{"drame", "action"}, nil)
		require.NoError(t, err)
		require.Len(t, genres, 2)
		assert.Equal(t, "drame", genres[0].Name)
		assert.Equal(t, "action", genres[1].Name)
	})

	t.Run("unknown selection is fatal", func(t *testing.T) {
		_, err := resolveGenres([]string{"western"}, nil)
		require.ErrorIs(t, err, ErrUnknownGenre)
	})

	t.Run("override replaces a default id", func(t *testing.T) {
		genres, err := resolveGenres([]string{"drame"}, []string{"drame=99999"})
		require.NoError(t, err)
		require.Len(t, genres, 1)
		assert.Equal(t, "99999", genres[0].ID)
	})

	t.Run("override adds a new genre", func(t *testing.T) {
		genres, err := resolveGenres([]string{"western"}, []string{"western=13023"})
		require.NoError(t, err)
		require.Len(t, genres, 1)
		assert.Equal(t, internal.Genre{Name: "western", ID: "13023"}, genres[0])
	})

	t.Run("malformed override is fatal", func(t *testing.T) {
		_, err := resolveGenres(nil, []string{"western"})
		require.Error(t, err)
		_, err = resolveGenres(nil, []string{"=13023"})
		require.Error(t, err)
	})
}

// mockCollector returns fixed links and records the request it saw.
type mockCollector struct {
	links []internal.ReviewLink
	req   internal.CollectRequest
}

func (m *mockCollector) CollectLinks(_ context.Context, req internal.CollectRequest) ([]internal.ReviewLink, error) {
	m.req = req
	return m.links, nil
}

// mockScraper converts each link into one fixed review.
type mockScraper struct {
	maxReviews int
}

func (m *mockScraper) ScrapeReviews(_ context.Context, links []internal.ReviewLink, maxReviews int) ([]internal.Review, internal.ScrapeSummary, error) {
	m.maxReviews = maxReviews
	if len(links) > maxReviews {
		links = links[:maxReviews]
	}
	out := make([]internal.Review, len(links))
	for i, l := range links {
		out[i] = internal.Review{
			ID:       l.URL,
			Score:    3,
			Critique: "avis " + l.URL,
			Date:     "12 juin 2021",
			Genre:    l.Genre,
		}
	}
	return out, internal.ScrapeSummary{LinksAttempted: len(links), Reviews: len(out)}, nil
}

func TestUnit_Harvest_EndToEnd(t *testing.T) {
	coll := &mockCollector{links: []internal.ReviewLink{
		{URL: "https://example.org/film/film-1/critiques/", Genre: "drame"},
		{URL: "https://example.org/film/film-2/critiques/", Genre: "drame"},
		{URL: "https://example.org/film/film-3/critiques/", Genre: "action"},
	}}
	scraper := &mockScraper{}
	out := filepath.Join(t.TempDir(), "reviews.parquet")

	cmd := Root(context.Background(), WithCollector(coll), WithScraper(scraper))
	err := cmd.Run(context.Background(), []string{
		"allocine-scraper", "harvest",
		"--genre", "drame", "--genre", "action",
		"--max-pages", "2",
		"--max-reviews", "2",
		"--out", out,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, coll.req.MaxPages)
	assert.Equal(t, defaultCountryID, coll.req.CountryID)
	require.Len(t, coll.req.Genres, 2)
	assert.Equal(t, "drame", coll.req.Genres[0].Name)

	assert.Equal(t, 2, scraper.maxReviews)

	rows, err := dataset.Read(out)
	require.NoError(t, err)
	require.Len(t, rows, 2, "cap truncates to the first discovered links")
	assert.Equal(t, "drame", rows[0].TypesMovie)
	assert.Equal(t, int32(3), rows[0].Scores)
}

func TestUnit_Harvest_UnknownGenreFailsBeforeCrawling(t *testing.T) {
	coll := &mockCollector{}
	cmd := Root(context.Background(), WithCollector(coll), WithScraper(&mockScraper{}))
	err := cmd.Run(context.Background(), []string{
		"allocine-scraper", "harvest", "--genre", "western",
	})
	require.ErrorIs(t, err, ErrUnknownGenre)
	assert.Empty(t, coll.req.Genres, "collector never invoked")
}

func TestUnit_Prepare_Command(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.parquet")
	out := filepath.Join(dir, "prepared.parquet")
	require.NoError(t, dataset.Export([]dataset.Row{
		{Critics: "bien", Scores: 4, Date: "12 juin 2021", TypesMovie: "drame"},
		{Critics: "bien", Scores: 4, Date: "12 juin 2021", TypesMovie: "drame"},
	}, in))

	cmd := Root(context.Background())
	err := cmd.Run(context.Background(), []string{
		"allocine-scraper", "prepare", "--in", in, "--out", out,
	})
	require.NoError(t, err)

	rows, err := dataset.ReadPrepared(out)
	require.NoError(t, err)
	require.Len(t, rows, 1, "duplicates collapse")
	assert.Equal(t, "2021-06-12", rows[0].Date)
	assert.InDelta(t, 4.0, rows[0].RollingScores30, 1e-9)
}

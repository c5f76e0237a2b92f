package runway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeasonRank(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, SeasonRank("Spring Ready-to-Wear"))
	require.Equal(t, 2, SeasonRank("Fall Ready-to-Wear"))
	require.Equal(t, 2, SeasonRank("Autumn Couture Showcase"))
	require.Equal(t, 5, SeasonRank("Pre-Fall"))
	require.Equal(t, 6, SeasonRank("Pre-Spring 2025"))
	require.Equal(t, 7, SeasonRank("Haute Couture"))
	require.Equal(t, unknownSeasonRank, SeasonRank("Menswear"))
}

func TestSortSeasonsAscending(t *testing.T) {
	t.Parallel()

	seasons := []Season{
		{Name: "Fall Ready-to-Wear", Year: "2025"},
		{Name: "Spring Ready-to-Wear", Year: "2025"},
		{Name: "Resort", Year: "2024"},
	}
	SortSeasons(seasons, false)

	require.Equal(t, "Resort", seasons[0].Name)
	require.Equal(t, "Spring Ready-to-Wear", seasons[1].Name)
	require.Equal(t, "Fall Ready-to-Wear", seasons[2].Name)
}

func TestSortSeasonsDescending(t *testing.T) {
	t.Parallel()

	seasons := []Season{
		{Name: "Spring Ready-to-Wear", Year: "2024"},
		{Name: "Fall Ready-to-Wear", Year: "2025"},
		{Name: "Spring Ready-to-Wear", Year: "2025"},
	}
	SortSeasons(seasons, true)

	require.Equal(t, "Fall Ready-to-Wear", seasons[0].Name)
	require.Equal(t, "Spring Ready-to-Wear", seasons[1].Name)
	require.Equal(t, "2024", seasons[2].Year)
}

func TestSortSeasonsNonNumericYearSortsFirst(t *testing.T) {
	t.Parallel()

	seasons := []Season{
		{Name: "Spring", Year: "2024"},
		{Name: "Spring", Year: "unknown"},
	}
	SortSeasons(seasons, false)

	require.Equal(t, "unknown", seasons[0].Year)
}

func TestClassifyImage(t *testing.T) {
	t.Parallel()

	require.Equal(t, ImageBack, ClassifyImage("Back view of Look 1"))
	require.Equal(t, ImageDetail, ClassifyImage("Detail shot, Look 4"))
	require.Equal(t, ImageFront, ClassifyImage("Look 2"))
	require.Equal(t, ImageFront, ClassifyImage(""))
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Seasons: []Season{{
			Name: "Spring Ready-to-Wear",
			Year: "2025",
			Designers: []Designer{{
				URL:   "https://example.com/d1",
				Looks: []Look{{Number: 1, Images: []Image{{URL: "img-1"}}}},
			}},
		}},
	}

	clone := snap.Clone()
	clone.Seasons[0].Designers[0].Looks[0].Images[0].URL = "mutated"
	clone.Seasons[0].Designers[0].Name = "mutated"

	require.Equal(t, "img-1", snap.Seasons[0].Designers[0].Looks[0].Images[0].URL)
	require.Empty(t, snap.Seasons[0].Designers[0].Name)
}

func TestFindDesignerReturnsOwningSeason(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Seasons: []Season{
			{Name: "Spring Ready-to-Wear", Year: "2025"},
			{Name: "Fall Ready-to-Wear", Year: "2025", Designers: []Designer{
				{URL: "https://example.com/d2"},
			}},
		},
	}

	season, designer := snap.FindDesigner("https://example.com/d2")
	require.NotNil(t, season)
	require.NotNil(t, designer)
	require.Equal(t, "Fall Ready-to-Wear", season.Name)

	season, designer = snap.FindDesigner("https://example.com/missing")
	require.Nil(t, season)
	require.Nil(t, designer)
}

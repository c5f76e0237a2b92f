package chromedpdriver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beborico/runway-crawler/internal/runway"
)

func TestParseLookTotal(t *testing.T) {
	total, err := parseLookTotal("Look 3/45")
	require.NoError(t, err)
	require.Equal(t, 45, total)

	total, err = parseLookTotal(" 1 / 12 ")
	require.NoError(t, err)
	require.Equal(t, 12, total)

	_, err = parseLookTotal("Look 3")
	require.Error(t, err)

	_, err = parseLookTotal("")
	require.Error(t, err)
}

func TestParseLookNumber(t *testing.T) {
	require.Equal(t, 3, parseLookNumber("Look 3/45"))
	require.Equal(t, 12, parseLookNumber("12/45"))
	require.Equal(t, 0, parseLookNumber("no counter"))
	require.Equal(t, 0, parseLookNumber(""))
}

func TestHighResURL(t *testing.T) {
	in := "https://assets.vogue.com/photos/abc/w_320,c_limit/look-01.jpg"
	require.Equal(t,
		"https://assets.vogue.com/photos/abc/w_2560,c_limit/look-01.jpg",
		highResURL(in))

	// URLs without a thumbnail segment pass through untouched.
	plain := "https://assets.vogue.com/photos/abc/look-01.jpg"
	require.Equal(t, plain, highResURL(plain))
}

func TestMapSeasonsFilters(t *testing.T) {
	base := "https://www.vogue.com"
	rows := []seasonRow{
		{Year: "2024", Season: "Fall Ready-to-Wear", URL: base + "/fashion-shows/fall-2024-ready-to-wear"},
		{Year: "Latest", Season: "Latest Shows", URL: base + "/fashion-shows/latest"},
		{Year: "2024", Season: "Spring Couture", URL: base + "/fashion-shows/spring-2024-couture"},
		{Year: "2023", Season: "Menswear", URL: base + "/tag/menswear"},
		{Year: "2023", Season: "", URL: base + "/fashion-shows/fall-2023"},
	}

	seasons := mapSeasons(rows, base)
	require.Len(t, seasons, 2)
	require.Equal(t, runway.SeasonKey{Name: "Fall Ready-to-Wear", Year: "2024"}, seasons[0].Key())
	require.Equal(t, runway.SeasonKey{Name: "Spring Couture", Year: "2024"}, seasons[1].Key())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, "https://www.vogue.com", cfg.BaseURL)
	require.NotZero(t, cfg.PageLoadWait)
	require.NotZero(t, cfg.ElementWait)
	require.NotZero(t, cfg.AuthTimeout)
	require.NotZero(t, cfg.OpTimeout)
}

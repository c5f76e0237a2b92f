package runway

import (
	"sort"
	"strconv"
	"strings"
)

// seasonOrder ranks season names within a year. "autumn" ranks the same
// as "fall". Names that match no entry sort after everything else.
var seasonOrder = []struct {
	name string
	rank int
}{
	{"spring", 0},
	{"summer", 1},
	{"fall", 2},
	{"autumn", 2},
	{"winter", 3},
	{"resort", 4},
	{"pre-fall", 5},
	{"pre-spring", 6},
	{"couture", 7},
}

const unknownSeasonRank = 99

// SeasonRank maps a season name to its chronological rank within a
// year. Composite names ("Fall Ready-to-Wear") match on substring.
func SeasonRank(name string) int {
	lower := strings.ToLower(name)
	// pre-fall/pre-spring must win over their bare fall/spring substrings
	for _, entry := range seasonOrder {
		if strings.HasPrefix(entry.name, "pre-") && strings.Contains(lower, entry.name) {
			return entry.rank
		}
	}
	for _, entry := range seasonOrder {
		if strings.Contains(lower, entry.name) {
			return entry.rank
		}
	}
	return unknownSeasonRank
}

// SortSeasons orders seasons chronologically by (year, season rank).
// Descending order puts the newest season first.
func SortSeasons(seasons []Season, descending bool) {
	sort.SliceStable(seasons, func(i, j int) bool {
		yi, yj := seasonYear(seasons[i].Year), seasonYear(seasons[j].Year)
		ri, rj := SeasonRank(seasons[i].Name), SeasonRank(seasons[j].Name)
		if descending {
			if yi != yj {
				return yi > yj
			}
			return ri > rj
		}
		if yi != yj {
			return yi < yj
		}
		return ri < rj
	})
}

func seasonYear(year string) int {
	n, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return 0
	}
	return n
}

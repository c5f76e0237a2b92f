package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
)

func TestNewRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{}, zap.NewNop())
	require.ErrorIs(t, err, runway.ErrStorage)
}

func TestSeasonIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := seasonID("Spring Ready-to-Wear", "2025")
	name, year, ok := splitSeasonID(id)
	require.True(t, ok)
	require.Equal(t, "Spring Ready-to-Wear", name)
	require.Equal(t, "2025", year)

	_, _, ok = splitSeasonID("malformed")
	require.False(t, ok)
}

// Integration tests require a local Redis; they follow the
// short-mode guard convention.
func TestWriteReadRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, err := New(ctx, Config{Addr: "localhost:6379", DB: 15}, zap.NewNop())
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer store.Close()

	want := runway.NewSnapshot(time.Now().UTC())
	want.Seasons = []runway.Season{{
		Name: "Spring Ready-to-Wear",
		Year: "2025",
		URL:  "https://example.com/spring-2025",
		Designers: []runway.Designer{{
			Name:       "Designer One",
			URL:        "https://example.com/d1",
			TotalLooks: 1,
			Looks: []runway.Look{{
				Number: 1,
				Images: []runway.Image{{
					URL:        "https://img.example.com/1",
					LookNumber: 1,
					Type:       runway.ImageFront,
					Timestamp:  time.Now().UTC().Truncate(time.Second),
				}},
			}},
		}},
	}}

	require.NoError(t, store.Write(ctx, want))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got.Seasons, 1)
	require.Equal(t, want.Seasons[0].Key(), got.Seasons[0].Key())
	require.Len(t, got.Seasons[0].Designers, 1)
	require.Len(t, got.Seasons[0].Designers[0].Looks, 1)

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)
}

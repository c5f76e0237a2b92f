package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
	"github.com/beborico/runway-crawler/internal/state"
	"github.com/beborico/runway-crawler/internal/storage/memstore"
)

var springKey = runway.SeasonKey{Name: "Spring Ready-to-Wear", Year: "2025"}

func newFixture(t *testing.T) (*Manager, *state.Store) {
	t.Helper()
	store := state.New(memstore.New(), zap.NewNop())
	return New(store, zap.NewNop()), store
}

func validImage(lookNumber int, url string) runway.Image {
	return runway.Image{
		URL:        url,
		LookNumber: lookNumber,
		Type:       runway.ImageFront,
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	t.Parallel()

	mgr, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, "https://example.com/d1"))
	err := mgr.Start(ctx, "https://example.com/d2")
	require.ErrorIs(t, err, runway.ErrConflict)

	url, active := mgr.Active()
	require.True(t, active)
	require.Equal(t, "https://example.com/d1", url)
}

func TestEndWithoutSession(t *testing.T) {
	t.Parallel()

	mgr, _ := newFixture(t)
	require.ErrorIs(t, mgr.End(context.Background()), runway.ErrNoActiveSession)
	require.ErrorIs(t, mgr.Rollback(context.Background()), runway.ErrNoActiveSession)
}

func TestEndClearsSessionAndSavesProgress(t *testing.T) {
	t.Parallel()

	mgr, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.Start(ctx, "https://example.com/d1"))
	require.NoError(t, mgr.End(ctx))

	_, active := mgr.Active()
	require.False(t, active)

	// A new session can start once the previous one ended.
	require.NoError(t, mgr.Start(ctx, "https://example.com/d2"))
}

func TestRollbackRestoresStateAfterFailedUpsert(t *testing.T) {
	t.Parallel()

	mgr, store := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSeason(ctx, runway.Season{Name: springKey.Name, Year: springKey.Year}))
	require.NoError(t, store.UpsertDesigner(ctx, springKey, runway.Designer{
		Name: "Designer One", URL: "https://example.com/d1", TotalLooks: 2,
	}))

	require.NoError(t, mgr.Start(ctx, "https://example.com/d1"))

	// One successful upsert inside the session.
	require.NoError(t, store.UpsertLook(ctx, "https://example.com/d1", 1,
		[]runway.Image{validImage(1, "https://img.example.com/1")}))

	// Second upsert fails validation; roll back to the restore point.
	bad := validImage(2, "")
	require.ErrorIs(t, store.UpsertLook(ctx, "https://example.com/d1", 2, []runway.Image{bad}), runway.ErrValidation)
	require.NoError(t, mgr.Rollback(ctx))

	snap, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Seasons[0].Designers[0].Looks)
}

func TestRecordPreservesEarlierUpsertsOnRollback(t *testing.T) {
	t.Parallel()

	mgr, store := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSeason(ctx, runway.Season{Name: springKey.Name, Year: springKey.Year}))
	require.NoError(t, store.UpsertDesigner(ctx, springKey, runway.Designer{
		Name: "Designer One", URL: "https://example.com/d1", TotalLooks: 3,
	}))

	require.NoError(t, mgr.Start(ctx, "https://example.com/d1"))

	require.NoError(t, store.UpsertLook(ctx, "https://example.com/d1", 1,
		[]runway.Image{validImage(1, "https://img.example.com/1")}))
	require.NoError(t, mgr.Record(ctx))
	require.NoError(t, store.UpsertLook(ctx, "https://example.com/d1", 2,
		[]runway.Image{validImage(2, "https://img.example.com/2")}))
	require.NoError(t, mgr.Record(ctx))

	// Look 3 fails; rollback returns to the post-look-2 state, not the
	// session start.
	bad := validImage(3, "")
	require.ErrorIs(t, store.UpsertLook(ctx, "https://example.com/d1", 3, []runway.Image{bad}), runway.ErrValidation)
	require.NoError(t, mgr.Rollback(ctx))

	snap, err := store.ReadAll(ctx)
	require.NoError(t, err)
	designer := snap.Seasons[0].Designers[0]
	require.Len(t, designer.Looks, 2)
	require.Equal(t, 2, designer.ExtractedLooks)
	require.False(t, designer.Completed)
}

func TestRecordRequiresActiveSession(t *testing.T) {
	t.Parallel()

	mgr, _ := newFixture(t)
	require.ErrorIs(t, mgr.Record(context.Background()), runway.ErrNoActiveSession)
}

func TestRestorePointHistoryIsCapped(t *testing.T) {
	t.Parallel()

	mgr, store := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSeason(ctx, runway.Season{Name: springKey.Name, Year: springKey.Year}))

	// Each session start with distinct state records a restore point.
	for i := 0; i < 8; i++ {
		require.NoError(t, store.UpsertSeason(ctx, runway.Season{
			Name: "Fall Ready-to-Wear", Year: fmt.Sprintf("20%02d", i),
		}))
		require.NoError(t, mgr.Start(ctx, "https://example.com/d1"))
		require.NoError(t, mgr.End(ctx))
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	require.LessOrEqual(t, len(mgr.history), maxRestorePoints)
}

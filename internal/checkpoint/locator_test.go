package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
	"github.com/beborico/runway-crawler/internal/storage"
	"github.com/beborico/runway-crawler/internal/storage/docstore"
)

func TestLatestReturnsNoneWithoutPriorState(t *testing.T) {
	t.Parallel()

	locator := NewLocator(storage.Config{
		Mode:    storage.ModeDocument,
		DataDir: t.TempDir(),
	}, zap.NewNop())

	require.Empty(t, locator.Latest(context.Background()))
}

func TestLatestFindsNewestSnapshotFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := docstore.New(docstore.Config{Dir: dir, FilePrefix: "runway"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), runway.NewSnapshot(time.Now().UTC())))

	locator := NewLocator(storage.Config{
		Mode:    storage.ModeDocument,
		DataDir: dir,
	}, zap.NewNop())

	require.Equal(t, store.Location(), locator.Latest(context.Background()))
}

func TestLatestRedisUnreachableFallsBackToFresh(t *testing.T) {
	t.Parallel()

	// Connection refused must be reported, not fatal.
	locator := NewLocator(storage.Config{
		Mode:      storage.ModeRedis,
		RedisAddr: "127.0.0.1:1",
	}, zap.NewNop())

	require.Empty(t, locator.Latest(context.Background()))
}

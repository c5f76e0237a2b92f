package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDocumentBackend(t *testing.T) {
	backend, err := New(context.Background(), Config{
		Mode:       ModeDocument,
		DataDir:    t.TempDir(),
		FilePrefix: "runway",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	exists, err := backend.Exists(context.Background())
	require.NoError(t, err)
	require.False(t, exists)
	require.NotEmpty(t, backend.Location())
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(context.Background(), Config{Mode: "s3"}, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown storage mode")
}

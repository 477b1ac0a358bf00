package storage_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"annotation-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalObjectStore(t *testing.T) {
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.CreateBucket(ctx, "images"))

	t.Run("PutThenGet", func(t *testing.T) {
		content := []byte("not really a jpeg")
		require.NoError(t, store.PutObject(ctx, "images", "sub/dir/cat.jpg", bytes.NewReader(content)))

		data, err := store.GetObject(ctx, "images", "sub/dir/cat.jpg")
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.GetObject(ctx, "images", "nope.jpg")
		assert.Error(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "images", "gone.jpg", bytes.NewReader([]byte("x"))))
		require.NoError(t, store.DeleteObject(ctx, "images", "gone.jpg"))

		_, err := store.GetObject(ctx, "images", "gone.jpg")
		assert.Error(t, err)
	})

	t.Run("PresignUnsupported", func(t *testing.T) {
		_, err := store.PresignPutURL(ctx, "images", "cat.jpg", time.Minute)
		assert.ErrorIs(t, err, storage.ErrPresignNotSupported)
	})
}

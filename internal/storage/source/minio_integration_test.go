//go:build integration

package source

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/platform/objectstore"
	"docverify/internal/verification/models"
	"docverify/pkg/testutil/containers"
)

func TestObjectStoreSave(t *testing.T) {
	mc := containers.GetManager().GetMinIO(t)
	ctx := context.Background()
	require.NoError(t, objectstore.EnsureBucket(ctx, mc.Client, "docverify-test", ""))

	store, err := NewObjectStore(mc.Client, "docverify-test")
	require.NoError(t, err)

	ref, err := store.Save(ctx, "run-7", models.Source{
		Filename:    "scan.png",
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://docverify-test/sources/run-7/scan.png", ref)

	obj, err := mc.Client.GetObject(ctx, "docverify-test", "sources/run-7/scan.png", minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	info, err := obj.Stat()
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
}

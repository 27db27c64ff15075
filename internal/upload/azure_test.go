package upload_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/azure/azurite"

	"github.com/inacomp/submission-judge/internal/upload"
)

const transcripts = "transcripts"

// startAzurite returns the account scoped blob endpoint of a throwaway azurite.
func startAzurite(ctx context.Context, t *testing.T) string {
	t.Helper()

	c, err := azurite.Run(ctx,
		"mcr.microsoft.com/azure-storage/azurite:latest",
		azurite.WithInMemoryPersistence(256),
	)
	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(c), "failed to stop azurite")
	})
	require.NoError(t, err, "failed to start azurite")

	endpoint, err := c.BlobServiceURL(ctx)
	require.NoError(t, err, "failed to get blob endpoint")
	return endpoint + "/" + azurite.AccountName
}

// blobs is a direct client on the same container, used to check what the archive wrote.
func blobs(t *testing.T, serviceURL string) *container.Client {
	t.Helper()

	cred, err := azblob.NewSharedKeyCredential(azurite.AccountName, azurite.AccountKey)
	require.NoError(t, err, "failed to build credential")
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	require.NoError(t, err, "failed to build blob client")
	return client.ServiceClient().NewContainerClient(transcripts)
}

func TestAzureArchive(t *testing.T) {
	ctx := context.Background()
	serviceURL := startAzurite(ctx, t)

	_, err := upload.NewAzureArchive(azurite.AccountName, azurite.AccountKey, serviceURL, "")
	require.Error(t, err, "container name should be required")

	archive, err := upload.NewAzureArchive(
		azurite.AccountName,
		azurite.AccountKey,
		serviceURL,
		transcripts,
	)
	require.NoError(t, err, "failed to construct archive")

	require.NoError(t, archive.EnsureContainer(ctx), "failed to make container")
	require.NoError(t, archive.EnsureContainer(ctx), "existing container should be accepted")

	direct := blobs(t, serviceURL)

	id, err := archive.StoreIdentifier(ctx)
	require.NoError(t, err)
	assert.Equal(t, transcripts, id)

	t.Run("Exists", func(t *testing.T) {
		key := uuid.NewString() + ".json"

		exists, err := archive.Exists(ctx, key)
		require.NoError(t, err, "failed to check missing blob")
		assert.False(t, exists, "blob should not exist yet")

		_, err = direct.NewBlockBlobClient(key).UploadBuffer(ctx, []byte("{}"), nil)
		require.NoError(t, err, "failed to seed blob")

		exists, err = archive.Exists(ctx, key)
		require.NoError(t, err, "failed to check seeded blob")
		assert.True(t, exists, "seeded blob should exist")
	})

	t.Run("Upload", func(t *testing.T) {
		key := uuid.NewString()
		body := "plain bytes"

		require.NoError(t, archive.Upload(ctx, strings.NewReader(body), int64(len(body)), key))

		got := make([]byte, len(body))
		_, err := direct.NewBlobClient(key).DownloadBuffer(ctx, got, nil)
		require.NoError(t, err, "failed to download blob")
		assert.Equal(t, body, string(got))
	})

	t.Run("Hashed", func(t *testing.T) {
		reader := strings.NewReader(`{"status":"success"}`)

		key, err := upload.Hashed(ctx, archive, "t1/c1/p1", ".json", reader, reader.Size())
		require.NoError(t, err, "failed to upload by hash")
		assert.True(t, strings.HasPrefix(key, "t1/c1/p1/"), "key should carry the prefix")

		props, err := direct.NewBlobClient(key).GetProperties(ctx, nil)
		require.NoError(t, err, "failed to read blob properties")
		require.NotNil(t, props.ContentType)
		assert.Equal(t, "application/json", *props.ContentType)

		again, err := upload.Hashed(ctx, archive, "t1/c1/p1", ".json", reader, reader.Size())
		require.NoError(t, err, "same contents should not fail")
		assert.Equal(t, key, again, "same contents should map to the same key")
	})
}

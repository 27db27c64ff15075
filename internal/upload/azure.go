package upload

import (
	"context"
	"errors"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensures AzureArchive implements Uploader interface.
var _ Uploader = (*AzureArchive)(nil)

// Transcript archive in an Azure Blob container
type AzureArchive struct {
	client *container.Client
	name   string
}

func NewAzureArchive(
	accountName, accountKey, serviceURL, containerName string,
) (*AzureArchive, error) {
	if containerName == "" {
		return nil, errors.New("container is required")
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, err
	}

	return &AzureArchive{
		client: client.ServiceClient().NewContainerClient(containerName),
		name:   containerName,
	}, nil
}

// EnsureContainer creates the container when it does not exist yet.
func (a *AzureArchive) EnsureContainer(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "AzureArchive.EnsureContainer", trace.WithAttributes(
		attribute.String("container", a.name),
	))
	defer span.End()

	_, err := a.client.Create(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create container")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "container ready")
	return nil
}

func (a *AzureArchive) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
) error {
	contentType := ContentType(key)
	ctx, span := tracer.Start(ctx, "AzureArchive.Upload", trace.WithAttributes(
		attribute.String("key", key),
		attribute.String("content_type", contentType),
		attribute.Int64("length", length),
	))
	defer span.End()

	_, err := a.client.NewBlockBlobClient(key).UploadStream(ctx, reader, &blockblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload blob")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded blob")
	return nil
}

func (a *AzureArchive) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "AzureArchive.Exists", trace.WithAttributes(
		attribute.String("key", key),
	))
	defer span.End()

	_, err := a.client.NewBlobClient(key).GetProperties(ctx, nil)
	switch {
	case err == nil:
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found blob")
		return true, nil
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "did not find blob")
		return false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read blob properties")
		return false, err
	}
}

func (a *AzureArchive) StoreIdentifier(_ context.Context) (string, error) {
	return a.name, nil
}

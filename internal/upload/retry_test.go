package upload_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/inacomp/submission-judge/internal/upload"
	mockuploader "github.com/inacomp/submission-judge/internal/upload/mock"
)

func fastRetries(u upload.Uploader) *upload.RetryUploader {
	return upload.NewRetryUploaderBackoff(u, func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewConstant(10*time.Millisecond))
	})
}

// failFirst fails the first n calls then returns ok.
func failFirst[T any](n int, ok T) func() (T, error) {
	calls := 0
	return func() (T, error) {
		calls++
		if calls <= n {
			var zero T
			return zero, errors.New("expected error")
		}
		return ok, nil
	}
}

func TestRetryStoreIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		calls    int
		wantErr  bool
	}{
		{name: "FirstTry", failures: 0, calls: 1},
		{name: "SecondTry", failures: 1, calls: 2},
		{name: "Exhausted", failures: 10, calls: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			u := mockuploader.NewMockUploader(ctrl)

			next := failFirst(tt.failures, "transcripts")
			u.EXPECT().
				StoreIdentifier(gomock.Any()).
				DoAndReturn(func(context.Context) (string, error) { return next() }).
				Times(tt.calls)

			actual, err := fastRetries(u).StoreIdentifier(context.Background())
			if tt.wantErr {
				require.Error(t, err, "expected retries to run out")
				return
			}
			require.NoError(t, err, "failed to get store identifier")
			assert.Equal(t, "transcripts", actual)
		})
	}
}

func TestRetryUpload(t *testing.T) {
	t.Run("RewindsBetweenAttempts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		reader := strings.NewReader("hello there")
		next := failFirst(1, struct{}{})
		u.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Eq(int64(reader.Len())), gomock.Eq("key")).
			DoAndReturn(func(_ context.Context, r io.ReadSeeker, _ int64, _ string) error {
				body, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, "hello there", string(body), "every attempt should see the whole body")
				_, err = next()
				return err
			}).
			Times(2)

		err := fastRetries(u).Upload(context.Background(), reader, int64(reader.Len()), "key")
		require.NoError(t, err, "failed to upload")
	})

	t.Run("Exhausted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("expected error")).
			Times(4)

		err := fastRetries(u).Upload(context.Background(), strings.NewReader("x"), 1, "key")
		require.Error(t, err, "somehow uploaded")
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		ctx, cancel := context.WithCancel(context.Background())
		u.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, io.ReadSeeker, int64, string) error {
				cancel()
				return errors.New("expected error")
			}).
			Times(1)

		slow := upload.NewRetryUploaderBackoff(u, func() retry.Backoff {
			return retry.NewConstant(time.Minute)
		})
		err := slow.Upload(ctx, strings.NewReader("x"), 1, "key")
		require.Error(t, err, "cancelled upload should fail")
	})
}

func TestRetryExists(t *testing.T) {
	for _, expected := range []bool{true, false} {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		next := failFirst(1, expected)
		u.EXPECT().
			Exists(gomock.Any(), gomock.Eq("key")).
			DoAndReturn(func(context.Context, string) (bool, error) { return next() }).
			Times(2)

		actual, err := fastRetries(u).Exists(context.Background(), "key")
		require.NoError(t, err, "failed to get exists")
		assert.Equal(t, expected, actual)
	}
}

func TestHashed(t *testing.T) {
	const body = "hello world"
	const key = "team/contest/b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9.json"

	t.Run("Uploads", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), gomock.Eq(key)).Return(false, nil).Times(1)
		u.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Eq(int64(len(body))), gomock.Eq(key)).
			DoAndReturn(func(_ context.Context, r io.ReadSeeker, _ int64, _ string) error {
				uploaded, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, body, string(uploaded))
				return nil
			}).
			Times(1)

		reader := strings.NewReader(body)
		actual, err := upload.Hashed(context.Background(), u, "team/contest", ".json", reader, reader.Size())
		require.NoError(t, err, "failed to upload")
		assert.Equal(t, key, actual)
	})

	t.Run("SkipsExisting", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), gomock.Eq(key)).Return(true, nil).Times(1)
		u.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		reader := strings.NewReader(body)
		actual, err := upload.Hashed(context.Background(), u, "team/contest", ".json", reader, reader.Size())
		require.NoError(t, err)
		assert.Equal(t, key, actual)
	})

	t.Run("ExistsFails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		u := mockuploader.NewMockUploader(ctrl)

		u.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, errors.New("expected error")).Times(1)

		reader := strings.NewReader(body)
		_, err := upload.Hashed(context.Background(), u, "team/contest", ".json", reader, reader.Size())
		require.Error(t, err)
	})
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"t/c/p/abc.json": "application/json",
		"t/c/p/abc":      "application/octet-stream",
	}
	for key, expected := range tests {
		assert.Equal(t, expected, upload.ContentType(key), key)
	}
}

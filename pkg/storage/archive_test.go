package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	err     error
	mu      sync.Mutex
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestArchive_PutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := newFakeS3()
	a := newArchive(api, Config{Bucket: "docs", Prefix: "/postbox/"})

	require.NoError(t, a.Put(ctx, "attachments/log-1/01H.pdf", []byte("%PDF"), "application/pdf"))
	assert.Equal(t, []byte("%PDF"), api.objects["docs/postbox/attachments/log-1/01H.pdf"])
	assert.Equal(t, "application/pdf", api.types["docs/postbox/attachments/log-1/01H.pdf"])

	data, err := a.Get(ctx, "attachments/log-1/01H.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	require.NoError(t, a.Delete(ctx, "attachments/log-1/01H.pdf"))
	_, err = a.Get(ctx, "attachments/log-1/01H.pdf")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_DefaultContentType(t *testing.T) {
	t.Parallel()
	api := newFakeS3()
	a := newArchive(api, Config{Bucket: "docs"})

	require.NoError(t, a.Put(context.Background(), "a.bin", []byte{1}, ""))
	assert.Equal(t, "application/octet-stream", api.types["docs/a.bin"])
}

func TestArchive_InvalidKey(t *testing.T) {
	t.Parallel()
	a := newArchive(newFakeS3(), Config{Bucket: "docs"})

	for _, key := range []string{"", "  ", "/", "../etc/passwd"} {
		require.ErrorIs(t, a.Put(context.Background(), key, nil, ""), ErrInvalidKey, key)
	}
}

func TestArchive_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key code", &smithy.GenericAPIError{Code: "NoSuchKey"}, ErrNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, ErrAccessDenied},
		{"other api error", &smithy.GenericAPIError{Code: "SlowDown"}, ErrDownloadFailed},
		{"network", errors.New("connection reset"), ErrDownloadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := newFakeS3()
			api.err = tt.err
			_, err := newArchive(api, Config{Bucket: "docs"}).Get(context.Background(), "k")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Bucket: "docs"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	a, err := New(Config{Bucket: "docs", AccessKey: "k", SecretKey: "s", Endpoint: "http://localhost:9000", PathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, "docs", a.bucket)

	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Bucket: "docs"}.Enabled())
}

package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigconnect/gigconnect/internal/config"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("abc", `C:\Users\me\My Report (final).pdf`)
	assert.True(t, strings.HasPrefix(key, "tickets/abc/"), key)
	assert.True(t, strings.HasSuffix(key, "-My_Report_final_.pdf"), key)

	assert.True(t, strings.HasSuffix(ObjectKey("abc", "../../etc/passwd"), "-passwd"))
	assert.True(t, strings.HasSuffix(ObjectKey("abc", ""), "-attachment"))
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "/uploads/")
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), "t1", "notes.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/tickets/t1/"), url)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/"))))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalUploaderCancelled(t *testing.T) {
	u, err := NewLocalUploader(t.TempDir(), "/uploads")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = u.Upload(ctx, "t1", "a.txt", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	s3manageriface.UploaderAPI
	input *s3manager.UploadInput
	err   error
}

func (f *fakeS3) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return &s3manager.UploadOutput{Location: "https://bucket.s3.amazonaws.com/" + *in.Key}, nil
}

func TestS3Uploader(t *testing.T) {
	fake := &fakeS3{}
	u := &S3Uploader{bucket: "attachments", uploader: fake}

	url, err := u.Upload(context.Background(), "t1", "logo.png", "", strings.NewReader("png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://bucket.s3.amazonaws.com/tickets/t1/"))
	assert.Equal(t, "attachments", *fake.input.Bucket)
	assert.Equal(t, "application/octet-stream", *fake.input.ContentType)

	fake.err = errors.New("access denied")
	_, err = u.Upload(context.Background(), "t1", "logo.png", "image/png", strings.NewReader("png"))
	assert.ErrorContains(t, err, "access denied")
}

func TestNewUploader(t *testing.T) {
	u, err := NewUploader(config.StorageConfig{Driver: "local", LocalDir: t.TempDir(), PublicURL: "/uploads"})
	require.NoError(t, err)
	assert.IsType(t, &LocalUploader{}, u)

	_, err = NewUploader(config.StorageConfig{Driver: "s3"})
	assert.Error(t, err)

	_, err = NewUploader(config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}

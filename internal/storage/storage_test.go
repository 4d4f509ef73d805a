package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aspirant2018/niqatech-backend/internal/config"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadKey(t *testing.T) {
	assert.Equal(t, "uploads/u1/f1.xls", UploadKey("u1", "f1", ".XLS"))
}

func TestNewByDriver(t *testing.T) {
	root := t.TempDir()
	s, err := New(config.StorageConfig{Driver: config.StorageLocal, Local: config.LocalConfig{Root: root}})
	require.NoError(t, err)
	_, ok := s.(FileSystem)
	assert.True(t, ok)

	_, err = New(config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}

func TestLocalStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key := UploadKey("u1", "f1", ".xls")
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Download(ctx, key)
	assert.True(t, stderrors.Is(err, errors.ErrFileNotFound))

	require.NoError(t, s.Upload(ctx, key, strings.NewReader("first")))
	require.NoError(t, s.Upload(ctx, key, strings.NewReader("second")))

	rc, err := s.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoragePathStaysInRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	require.NoError(t, err)

	p, err := s.Path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root))

	_, err = s.Path("..")
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, stderrors.New("disk on fire")
}

func TestWriteFileAtomicKeepsOriginalOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xls")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o600))

	err := WriteFileAtomic(context.Background(), path, failingReader{}, 0o644)
	var rerr *errors.RewriteError
	require.True(t, stderrors.As(err, &rerr))
	assert.Equal(t, "write", rerr.Op)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WriteFileAtomic(ctx, path, strings.NewReader("new"), 0o644)
	assert.ErrorIs(t, err, context.Canceled)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestWriteFileAtomicKeepsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xls")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o600))
	require.NoError(t, WriteFileAtomic(context.Background(), path, strings.NewReader("new"), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, awserr.New("NotFound", "missing", nil)
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	ctx := context.Background()
	s := NewS3StorageWithClient(&fakeS3{objects: map[string][]byte{}}, "gradebooks")

	_, err := s.Download(ctx, "uploads/u1/f1.xls")
	assert.True(t, stderrors.Is(err, errors.ErrFileNotFound))

	require.NoError(t, s.Upload(ctx, "uploads/u1/f1.xls", io.LimitReader(strings.NewReader("workbook"), 100)))
	ok, err := s.Exists(ctx, "uploads/u1/f1.xls")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Download(ctx, "uploads/u1/f1.xls")
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "workbook", string(got))

	require.NoError(t, s.Delete(ctx, "uploads/u1/f1.xls"))
	ok, err = s.Exists(ctx, "uploads/u1/f1.xls")
	require.NoError(t, err)
	assert.False(t, ok)
}

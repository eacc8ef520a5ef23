package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "http://localhost:8080/media/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "rooms/1/a.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/rooms/1/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "rooms", "1", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, store.Delete(context.Background(), "rooms/1/a.png"))
	require.NoError(t, store.Delete(context.Background(), "rooms/1/a.png"))
	_, err = os.Stat(filepath.Join(dir, "rooms", "1", "a.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageStaysInsideBaseDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(dir, "base"), "")
	require.NoError(t, err)

	_, err = store.Save("../../escape.txt", []byte("x"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "base", "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "")
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("new.csv", []byte("b"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)
}

type fakeS3 struct {
	putKey      string
	contentType string
	body        string
	deleteErr   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putKey = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, _ *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, f.deleteErr
}

func TestS3StoragePut(t *testing.T) {
	client := &fakeS3{}
	store := NewS3StorageWithClient(client, "bucket", "https://cdn.example.com/")

	url, err := store.Put(context.Background(), "/rooms/2/b.jpg", "image/jpeg", strings.NewReader("jpg"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/rooms/2/b.jpg", url)
	assert.Equal(t, "rooms/2/b.jpg", client.putKey)
	assert.Equal(t, "image/jpeg", client.contentType)
	assert.Equal(t, "jpg", client.body)

	_, err = store.Put(context.Background(), "", "", strings.NewReader(""))
	assert.Error(t, err)
}

func TestS3StorageDeleteIgnoresMissingKey(t *testing.T) {
	client := &fakeS3{deleteErr: &types.NoSuchKey{}}
	store := NewS3StorageWithClient(client, "bucket", "https://cdn.example.com")
	assert.NoError(t, store.Delete(context.Background(), "missing"))

	client.deleteErr = errors.New("denied")
	assert.Error(t, store.Delete(context.Background(), "k"))
}

package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeS3Client struct {
	objects map[string][]byte
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: map[string][]byte{}}
}

func (f *fakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	content, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(content))}, nil
}

var _ smithy.APIError = &types.NotFound{}

func TestS3BlobStore_PutGetExists(t *testing.T) {
	fake := newFakeS3Client()
	store := &S3BlobStore{client: fake, bucket: "evidence", prefix: "blobs"}
	ctx := context.Background()

	content := []byte("a grant deed")
	key := KeyFor(content)

	exists, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("blob should not exist before Put")
	}

	// Simulate what Put's uploader would do, since manager.Uploader isn't
	// mockable through s3API alone.
	fake.objects[store.objectKey(key)] = content

	exists, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("blob should exist after upload")
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Get() = %q, want %q", got, content)
	}
}

func TestS3BlobStore_ObjectKeyPrefix(t *testing.T) {
	store := &S3BlobStore{bucket: "evidence", prefix: "blobs"}
	key := "sha256/abc"
	if got := store.objectKey(key); got != "blobs/sha256/abc" {
		t.Errorf("objectKey() = %q", got)
	}

	noPrefix := &S3BlobStore{bucket: "evidence"}
	if got := noPrefix.objectKey(key); got != key {
		t.Errorf("objectKey() with no prefix = %q", got)
	}
}

func TestS3BlobStore_ExistsNotFound(t *testing.T) {
	fake := newFakeS3Client()
	store := &S3BlobStore{client: fake, bucket: "evidence"}
	ctx := context.Background()

	exists, err := store.Exists(ctx, "sha256/missing")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("missing blob reported as existing")
	}
}

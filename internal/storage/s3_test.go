package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"chatboard/internal/chat"
)

// fakeS3 is an in-memory stand-in for the S3 client and upload manager.
type fakeS3 struct {
	objects     map[string][]byte
	contentType map[string]string
	headErr     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), contentType: make(map[string]string)}
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.contentType[key] = aws.ToString(in.ContentType)
	return &manager.UploadOutput{Key: in.Key}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Store_PutGetDelete(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, fake, "chat-bucket", "/prod/", "eu-west-1", "", "")
	ctx := context.Background()

	url, err := store.Put(ctx, "chat_files/a.png", strings.NewReader("img"), 3, "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if want := "https://chat-bucket.s3.eu-west-1.amazonaws.com/prod/chat_files/a.png"; url != want {
		t.Errorf("Put() url = %q, want %q", url, want)
	}
	if got := fake.contentType["chat-bucket/prod/chat_files/a.png"]; got != "image/png" {
		t.Errorf("content type = %q, want image/png", got)
	}

	var buf bytes.Buffer
	if err := store.Get(ctx, "chat_files/a.png", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "img" {
		t.Errorf("Get() = %q, want %q", buf.String(), "img")
	}

	if err := store.Delete(ctx, "chat_files/a.png"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Get(ctx, "chat_files/a.png", &buf); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestS3Store_URL(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		endpoint string
		baseURL  string
		want     string
	}{
		{name: "virtual hosted", want: "https://b.s3.us-east-1.amazonaws.com/k"},
		{name: "custom endpoint", endpoint: "http://minio:9000/", want: "http://minio:9000/b/k"},
		{name: "prefixed", prefix: "chat", want: "https://b.s3.us-east-1.amazonaws.com/chat/k"},
		{name: "public base url", endpoint: "http://minio:9000", baseURL: "https://cdn.test", want: "https://cdn.test/k"},
		{name: "public base url is rooted at prefix", prefix: "chat", baseURL: "/uploads", want: "/uploads/k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newS3Store(newFakeS3(), nil, "b", tt.prefix, "us-east-1", tt.endpoint, tt.baseURL)
			if got := store.URL("k"); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS3Store_ValidateSetup(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, fake, "b", "", "us-east-1", "", "")

	if err := store.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	fake.headErr = errors.New("forbidden")
	if err := store.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error when bucket is unreachable")
	}
}

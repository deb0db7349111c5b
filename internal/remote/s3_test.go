package remote

import (
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/torfstack/sideload/internal/config"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]int
	copies  []string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/bucket/")
	switch r.Method {
	case http.MethodHead:
		size, ok := b.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(size))
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		b.copies = append(b.copies, key+"<-"+r.Header.Get("X-Amz-Copy-Source"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"etag"</ETag></CopyObjectResult>`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Client(t *testing.T, bucket *fakeBucket) *S3Client {
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})
	return NewS3Client(client, "bucket", "sha1")
}

func TestS3InitUpload(t *testing.T) {
	tests := []struct {
		name       string
		objects    map[string]int
		wantStatus string
	}{
		{
			name:    "pool miss returns hash",
			objects: map[string]int{},
		},
		{
			name:    "pool hit with other size returns hash",
			objects: map[string]int{"sha1/" + helloSHA1: 3},
		},
		{
			name:       "pool hit is copied",
			objects:    map[string]int{"sha1/" + helloSHA1: 11},
			wantStatus: StatusCopied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket := &fakeBucket{objects: tt.objects}
			c := newTestS3Client(t, bucket)

			res, err := c.InitUpload(t.Context(), Request{
				Path:     helloFile(t, "a.txt"),
				Name:     "a.txt",
				Size:     11,
				FolderID: "media",
			})
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, res.Status)
			require.Equal(t, helloSHA1, res.FileSHA1)
			if tt.wantStatus == "" {
				require.Empty(t, bucket.copies)
				return
			}
			require.Equal(t, "media/a.txt", res.RemoteID)
			require.Len(t, bucket.copies, 1)
			require.True(t, strings.HasPrefix(bucket.copies[0], "media/a.txt<-bucket/"))
		})
	}
}

func TestS3ClientFromConfigWithCABundle(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]int{"sha1/" + helloSHA1: 11}}
	srv := httptest.NewTLSServer(bucket)
	t.Cleanup(srv.Close)

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, certPEM, 0600))
	t.Setenv("AWS_CA_BUNDLE", bundle)

	c, err := NewS3ClientFromConfig(t.Context(), config.S3{
		Bucket:     "bucket",
		Region:     "us-east-1",
		Endpoint:   srv.URL,
		AccessKey:  "key",
		SecretKey:  "secret",
		PoolPrefix: "sha1",
	})
	require.NoError(t, err)

	res, err := c.InitUpload(t.Context(), Request{
		Path:     helloFile(t, "a.txt"),
		Name:     "a.txt",
		Size:     11,
		FolderID: "media",
	})
	require.NoError(t, err)
	require.Equal(t, StatusCopied, res.Status)
	require.Len(t, bucket.copies, 1)
}

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/torfstack/sideload/internal/config"
	"github.com/torfstack/sideload/internal/logging"
)

// S3Client implements instant upload against a content addressed pool inside
// one bucket: objects stored at {pool_prefix}/{sha1} are copied to
// {folder}/{name} without transferring data from this machine.
type S3Client struct {
	client     *s3.Client
	bucket     string
	poolPrefix string
}

func NewS3Client(client *s3.Client, bucket, poolPrefix string) *S3Client {
	return &S3Client{client: client, bucket: bucket, poolPrefix: poolPrefix}
}

func NewS3ClientFromConfig(ctx context.Context, cfg config.S3) (*S3Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(30 * time.Second)),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Client(client, cfg.Bucket, cfg.PoolPrefix), nil
}

func (c *S3Client) InitUpload(ctx context.Context, req Request) (Result, error) {
	sha, err := ensureSHA1(req)
	if err != nil {
		return Result{}, err
	}

	poolKey := path.Join(c.poolPrefix, sha)
	head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(poolKey),
	})
	var notFound *types.NotFound
	switch {
	case errors.As(err, &notFound):
		return Result{FileSHA1: sha}, nil
	case err != nil:
		return Result{}, fmt.Errorf("could not look up pool object '%s': %w", poolKey, err)
	}
	if size := aws.ToInt64(head.ContentLength); size != req.Size {
		logging.Warnf("Pool object %s has size %d, local file %s has %d", poolKey, size, req.Path, req.Size)
		return Result{FileSHA1: sha}, nil
	}

	dst := path.Join(req.FolderID, req.Name)
	_, err = c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(c.bucket + "/" + url.PathEscape(poolKey)),
	})
	if err != nil {
		return Result{}, fmt.Errorf("could not copy '%s' to '%s': %w", poolKey, dst, err)
	}
	return Result{Status: StatusCopied, FileSHA1: sha, RemoteID: dst}, nil
}

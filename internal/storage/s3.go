package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/grabd/internal/config"
)

// Uploader is the subset of the S3 transfer manager the archiver needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver copies expired artifacts to a bucket before the sweeper removes them.
type S3Archiver struct {
	uploader Uploader
	bucket   string
	prefix   string
}

func NewS3Archiver(ctx context.Context, cfg config.Archive) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket must not be empty")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRetryMode(aws.RetryModeAdaptive)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
	})
	return NewS3ArchiverWithUploader(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

func NewS3ArchiverWithUploader(u Uploader, bucket, prefix string) *S3Archiver {
	return &S3Archiver{uploader: u, bucket: bucket, prefix: prefix}
}

// Key is the object key an artifact is stored under.
func (a *S3Archiver) Key(localPath string) string {
	name := filepath.Base(localPath)
	prefix := strings.Trim(a.prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (a *S3Archiver) Archive(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("error opening artifact: %v", err)
	}
	defer file.Close()
	key := a.Key(localPath)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("error uploading to s3://%s/%s: %v", a.bucket, key, err)
	}
	log.Debug().Str("op", "storage/s3").Msgf("archived %s to s3://%s/%s", localPath, a.bucket, key)
	return nil
}

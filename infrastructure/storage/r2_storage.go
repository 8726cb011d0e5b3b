package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
)

// r2Backend talks to Cloudflare R2 through the AWS SDK S3 client
type r2Backend struct {
	client *s3.Client
	bucket string
	cdnURL string
}

type R2StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func NewR2Storage(cfg R2StorageConfig) (ports.ObjectStorePort, error) {
	if cfg.AccountID == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("R2 account id and bucket are required")
	}
	if cfg.PublicURL == "" {
		return nil, fmt.Errorf("R2 public URL is required to resolve object URLs")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	logger.Info("R2 storage initialized", "bucket", cfg.BucketName)

	return newGateway(&r2Backend{
		client: client,
		bucket: cfg.BucketName,
		cdnURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}), nil
}

func (r *r2Backend) putFile(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	return err
}

func (r *r2Backend) remove(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (r *r2Backend) publicURL(key string) string {
	return r.cdnURL + "/" + key
}

func (r *r2Backend) name() string {
	return "r2"
}

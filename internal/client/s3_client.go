package client

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/util"
)

type S3Client struct {
	Client *s3.Client
	config *config.S3Config
}

// NewS3Client uses the default AWS credential chain.
func NewS3Client(cfg *config.Config, logger *zap.Logger) (*S3Client, error) {
	s3Config := cfg.S3

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s3Config.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c := &S3Client{
		Client: s3.NewFromConfig(awsCfg),
		config: &s3Config,
	}
	if err := c.HealthCheck(ctx); err != nil {
		return nil, err
	}

	util.Info("S3 archive client initialized",
		zap.String("bucket", s3Config.Bucket),
		zap.String("prefix", s3Config.Prefix),
		zap.String("region", s3Config.Region))
	return c, nil
}

func (c *S3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return c.Client.PutObject(ctx, params, optFns...)
}

// HealthCheck confirms the archive bucket exists and is reachable.
func (c *S3Client) HealthCheck(ctx context.Context) error {
	_, err := c.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.config.Bucket)})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not reachable: %w", c.config.Bucket, err)
	}
	return nil
}

package sink

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectPutter is the part of *s3.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads finished log files to <prefix>/<format>/<file>.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

func NewS3Archiver(client ObjectPutter, bucket, prefix string, logger *zap.Logger) *S3Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}
}

func (a *S3Archiver) ObjectKey(format, file string) string {
	return path.Join(a.prefix, format, filepath.Base(file))
}

func (a *S3Archiver) Archive(ctx context.Context, format, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("s3 archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("s3 archive: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.ObjectKey(format, file)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("text/plain"),
	}
	if strings.HasSuffix(file, ".gz") {
		input.ContentType = aws.String("application/gzip")
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 archive %s: %w", *input.Key, err)
	}
	a.logger.Info("Archived log file",
		zap.String("bucket", a.bucket),
		zap.String("key", *input.Key),
		zap.Int64("bytes", info.Size()))
	return nil
}

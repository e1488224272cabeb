package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/logger"
)

const existsTimeout = time.Minute

// Uploader copies snapshot files into a bucket under a key prefix.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

func NewUploader(ctx context.Context, cfg *config.S3Config, log *zap.Logger) (*Uploader, error) {
	if cfg == nil || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var loaders []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewUploaderWithClient(client, cfg.Bucket, cfg.Prefix, log), nil
}

func NewUploaderWithClient(client *s3.Client, bucket, prefix string, log *zap.Logger) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named(log, "export").With(zap.String("bucket", bucket)),
	}
}

// Key returns the object key for a local file.
func (u *Uploader) Key(file string) string {
	base := filepath.Base(file)
	if u.prefix == "" {
		return base
	}
	return path.Join(u.prefix, base)
}

// Upload puts every file and waits until each object is visible.
func (u *Uploader) Upload(ctx context.Context, files []string) error {
	for _, file := range files {
		if err := u.put(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uploader) put(ctx context.Context, file string) error {
	body, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	key := u.Key(file)
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if ct := contentTypeForKey(key); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "EntityTooLarge" {
			return fmt.Errorf("upload %s: object exceeds the single put limit: %w", key, err)
		}
		return fmt.Errorf("upload %s: %w", key, err)
	}

	waiter := s3.NewObjectExistsWaiter(u.client)
	if err := waiter.Wait(ctx, &s3.HeadObjectInput{Bucket: aws.String(u.bucket), Key: aws.String(key)}, existsTimeout); err != nil {
		return fmt.Errorf("waiting for %s: %w", key, err)
	}

	u.logger.Info("uploaded snapshot", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}

func contentTypeForKey(key string) string {
	lower := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(lower, ".jsonl"), strings.HasSuffix(lower, ".jsonl.gz"):
		return "application/x-ndjson"
	case strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".json.gz"):
		return "application/json"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain"
	default:
		return ""
	}
}

// Package publish uploads finished scan artifacts to S3-compatible storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sentinel errors for publisher configuration.
var (
	ErrNoEndpoint = errors.New("publish: endpoint is required")
	ErrNoBucket   = errors.New("publish: bucket is required")
)

const defaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".json":   "application/json",
	".csv":    "text/csv",
	".ndjson": "application/x-ndjson",
	".txt":    "text/plain; charset=utf-8",
}

// Config describes the target bucket.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"   yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket"     yaml:"bucket"`
	Prefix    string `mapstructure:"prefix"     yaml:"prefix"`
	Region    string `mapstructure:"region"     yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	UseSSL    bool   `mapstructure:"use_ssl"    yaml:"use_ssl"`
}

// Enabled reports whether a target is configured.
func (c *Config) Enabled() bool {
	return c.Endpoint != "" || c.Bucket != ""
}

// Validate checks that the target is complete.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}

	if c.Bucket == "" {
		return ErrNoBucket
	}

	return nil
}

// Uploader is the subset of the minio client used here.
type Uploader interface {
	FPutObject(ctx context.Context, bucket, key, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Publisher) { p.tracer = t }
}

// Publisher uploads files under <prefix>/<scan id>/.
type Publisher struct {
	up     Uploader
	bucket string
	prefix string
	logger *slog.Logger
	tracer trace.Tracer
}

// New connects a publisher to the configured bucket. No request is made
// until Publish.
func New(cfg Config, opts ...Option) (*Publisher, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: client: %w", err)
	}

	return NewWithUploader(mc, cfg.Bucket, cfg.Prefix, opts...), nil
}

// NewWithUploader creates a publisher around an existing client.
func NewWithUploader(up Uploader, bucket, prefix string, opts ...Option) *Publisher {
	p := &Publisher{
		up:     up,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: slog.Default(),
		tracer: otel.Tracer("prescan/publish"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Key returns the object key for a local file.
func (p *Publisher) Key(scanID, file string) string {
	return path.Join(p.prefix, scanID, filepath.Base(file))
}

// Publish uploads files and returns their object keys. It stops at the first
// failure; keys of files already uploaded are still returned.
func (p *Publisher) Publish(ctx context.Context, scanID string, files ...string) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "prescan.publish",
		trace.WithAttributes(attribute.String("prescan.bucket", p.bucket), attribute.Int("prescan.files", len(files))))
	defer span.End()

	keys := make([]string, 0, len(files))

	for _, file := range files {
		key := p.Key(scanID, file)

		info, err := p.up.FPutObject(ctx, p.bucket, key, file, minio.PutObjectOptions{
			ContentType:  contentType(file),
			UserMetadata: map[string]string{"scan-id": scanID},
		})
		if err != nil {
			err = fmt.Errorf("publish %s: %w", filepath.Base(file), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return keys, err
		}

		p.logger.InfoContext(ctx, "publish: uploaded", "bucket", p.bucket, "key", key, "size", info.Size)

		keys = append(keys, key)
	}

	return keys, nil
}

func contentType(file string) string {
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(file))]
	if !ok {
		return defaultContentType
	}

	return ct
}

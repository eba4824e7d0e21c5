// Package objectstorage provides client initialization and configuration.
//
// The Client adapts Amazon S3 to the storageapi.StorageAPI port consumed by
// the transfer package, and offers convenience constructors for the multipart
// assembler and upload manager bound to it.
package objectstorage

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/objectstorage/transfer"
)

// Client is the S3-backed implementation of storageapi.StorageAPI.
// It is safe for concurrent use: part uploads from multiple worker goroutines
// share one client.
//
// S3 has no namespaced addressing, so the Namespace field of storage inputs
// is ignored.
type Client struct {
	// s3Client is the underlying AWS SDK S3 client
	s3Client s3api.S3API

	// config holds the AWS configuration
	config aws.Config

	// logger receives structured operational logs
	logger *slog.Logger
}

// New creates a new object storage client with the provided options.
// It loads AWS credentials using the default credential chain
// and applies the specified configuration options.
//
// Example:
//
//	client, err := objectstorage.New(ctx,
//	    objectstorage.WithRegion("us-west-2"),
//	    objectstorage.WithMaxRetries(3),
//	)
func New(ctx context.Context, opts ...Option) (*Client, error) {
	clientCfg := &ClientConfig{
		MaxRetries: 3,
	}
	for _, opt := range opts {
		opt(clientCfg)
	}

	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1" // AWS default region
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)

	if clientCfg.Endpoint != "" {
		endpoint := clientCfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	switch {
	case clientCfg.CustomHTTPClient != nil:
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = clientCfg.CustomHTTPClient
		})
	case clientCfg.Timeout > 0:
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	logger := clientCfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg, s3Opts...),
		config:   cfg,
		logger:   logger,
	}, nil
}

// NewWithClient creates an object storage client around a custom S3API
// implementation. This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API, opts ...Option) *Client {
	clientCfg := &ClientConfig{}
	for _, opt := range opts {
		opt(clientCfg)
	}

	logger := clientCfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		s3Client: s3Client,
		config:   aws.Config{},
		logger:   logger,
	}
}

// NewMultipartAssembler creates a multipart assembler bound to this client
// for the given bucket and object. The executor supplies the concurrency for
// part uploads.
func (c *Client) NewMultipartAssembler(
	bucket, object string,
	allowOverwrite bool,
	executor transfer.Executor,
	opts ...transfer.AssemblerOption,
) *transfer.MultipartAssembler {
	opts = append([]transfer.AssemblerOption{transfer.WithLogger(c.logger)}, opts...)
	return transfer.NewMultipartAssembler(c, "", bucket, object, allowOverwrite, executor, opts...)
}

// NewUploadManager creates an upload manager bound to this client.
func (c *Client) NewUploadManager(opts ...transfer.ManagerOption) *transfer.UploadManager {
	opts = append([]transfer.ManagerOption{transfer.WithManagerLogger(c.logger)}, opts...)
	return transfer.NewUploadManager(c, opts...)
}

// Close releases any resources held by the client.
// Currently a no-op but included for future extensibility.
func (c *Client) Close() error {
	return nil
}

// Package objectstorage provides functional options for configuring client behavior.
// These options follow the functional options pattern for clean, composable configuration.
package objectstorage

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ClientConfig holds the resolved configuration for a Client.
type ClientConfig struct {
	// Region is the AWS region for storage operations
	Region string

	// Endpoint is a custom service endpoint URL (S3-compatible services, LocalStack)
	Endpoint string

	// ForcePathStyle forces path-style URLs instead of virtual-hosted style
	ForcePathStyle bool

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// Timeout applies to individual HTTP calls; zero means no timeout
	Timeout time.Duration

	// CustomAWSConfig overrides the default configuration loading behavior
	CustomAWSConfig *aws.Config

	// CustomHTTPClient overrides the SDK's HTTP client
	CustomHTTPClient *http.Client

	// Logger receives structured operational logs; nil means silent
	Logger *slog.Logger
}

// Option configures a Client.
type Option func(*ClientConfig)

// WithRegion sets the AWS region for storage operations.
// If not specified, uses the default region from the credential chain.
func WithRegion(region string) Option {
	return func(c *ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom service endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(c *ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of
// virtual-hosted style. This is required for S3-compatible services that
// don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) Option {
	return func(c *ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithMaxRetries sets the maximum number of retry attempts for failed operations.
// Default is 3 retries. Set to 0 to disable retries.
func WithMaxRetries(maxRetries int) Option {
	return func(c *ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual HTTP calls.
// Default is no timeout (0). Values should be positive durations.
func WithTimeout(timeout time.Duration) Option {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) Option {
	return func(c *ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// This gives full control over HTTP behavior including timeouts and proxies.
func WithCustomHTTPClient(client *http.Client) Option {
	return func(c *ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the structured logger for the client and everything built
// from it. The client is silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

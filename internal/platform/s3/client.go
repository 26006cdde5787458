package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Scheme prefixes object references accepted by ParseURL.
const Scheme = "s3://"

// API is the subset of the S3 SDK client used by Client.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client reads objects from S3.
type Client struct {
	s3     API
	region string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPI sets a custom S3 API implementation (useful for testing).
func WithAPI(api API) ClientOption {
	return func(c *Client) {
		c.s3 = api
	}
}

// NewClient creates a new S3 client. Empty credentials fall back to the
// default AWS credential chain.
func NewClient(ctx context.Context, region, accessKey, secretKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{region: region}
	for _, opt := range opts {
		opt(c)
	}
	if c.s3 != nil {
		return c, nil
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c.s3 = s3.NewFromConfig(cfg)
	return c, nil
}

// Object identifies one object.
type Object struct {
	Bucket string
	Key    string
}

func (o Object) String() string {
	return Scheme + o.Bucket + "/" + o.Key
}

// IsURL reports whether ref uses the s3:// scheme.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, Scheme)
}

// ParseURL parses s3://bucket/key.
func ParseURL(ref string) (Object, error) {
	if !IsURL(ref) {
		return Object{}, fmt.Errorf("%q is not an %s URL", ref, Scheme)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return Object{}, fmt.Errorf("%q must have the form %sbucket/key", ref, Scheme)
	}
	return Object{Bucket: bucket, Key: key}, nil
}

// Size returns the object size in bytes.
func (c *Client) Size(ctx context.Context, obj Object) (int64, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return 0, fmt.Errorf("object %s does not exist: %w", obj, err)
		}
		return 0, fmt.Errorf("failed to stat object %s: %w", obj, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Open streams the object body. The caller closes it.
func (c *Client) Open(ctx context.Context, obj Object) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", obj, err)
	}
	return out.Body, nil
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	// Check for typed S3 errors first
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// HeadObject carries no body, so S3 reports a bare status code.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "NoSuchBucket" || code == "404"
	}

	return false
}

// IsNotFound reports whether err means the bucket or object does not exist.
func IsNotFound(err error) bool {
	return isNotFoundError(err)
}

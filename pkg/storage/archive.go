package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config holds S3-compatible object storage settings. An empty bucket
// disables the archive.
type Config struct {
	Bucket    string `env:"STORAGE_BUCKET"`
	AccessKey string `env:"STORAGE_ACCESS_KEY"`
	SecretKey string `env:"STORAGE_SECRET_KEY"`
	Endpoint  string `env:"STORAGE_ENDPOINT"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Prefix    string `env:"STORAGE_PREFIX"`
	PathStyle bool   `env:"STORAGE_PATH_STYLE" envDefault:"false"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

func (c Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}

// objectAPI is the subset of *s3.Client the archive calls.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Archive keeps attachment bodies in a private bucket so queued jobs carry
// only object keys.
type Archive struct {
	client objectAPI
	bucket string
	prefix string
}

// New creates an Archive backed by S3 or any S3-compatible endpoint.
func New(cfg Config) (*Archive, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
	})

	return newArchive(client, cfg), nil
}

func newArchive(client objectAPI, cfg Config) *Archive {
	return &Archive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

// Put uploads content under key as a private object.
func (a *Archive) Put(ctx context.Context, key string, content []byte, contentType string) error {
	k, err := a.key(key)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return wrapS3Error(err, ErrUploadFailed)
	}
	return nil
}

// Get downloads the object stored under key.
func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := a.key(key)
	if err != nil {
		return nil, err
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return nil, wrapS3Error(err, ErrDownloadFailed)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrapS3Error(err, ErrDownloadFailed)
	}
	return data, nil
}

// Delete removes the object stored under key. Missing objects are not an error.
func (a *Archive) Delete(ctx context.Context, key string) error {
	k, err := a.key(key)
	if err != nil {
		return err
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return wrapS3Error(err, ErrDeleteFailed)
	}
	return nil
}

func (a *Archive) key(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	if a.prefix == "" {
		return key, nil
	}
	return a.prefix + "/" + key, nil
}

// Package store writes rendered figures and reports to their destination:
// a local directory or an S3 bucket.
package store

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

// Sink stores a named object and returns where it can be fetched from.
type Sink interface {
	Put(ctx context.Context, name, contentType string, body []byte) (location string, err error)
}

// FileSink writes objects as files under Dir. Put returns the file path.
type FileSink struct {
	Dir string
}

// NewFileSink returns a sink writing into dir. An empty dir means the
// working directory.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Put writes body to name under Dir, creating Dir if needed, and returns
// the file path.
func (f *FileSink) Put(ctx context.Context, name, contentType string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := filepath.Join(f.Dir, name)
	if f.Dir != "" {
		if err := os.MkdirAll(f.Dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "creating %s", f.Dir)
		}
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s", p)
	}
	return p, nil
}

// S3SinkInput configures an S3Sink.
type S3SinkInput struct {
	// AWS Session used for credentials and region. Ignored when Client is
	// set.
	Session *session.Session

	// S3 client to use instead of one built from Session.
	Client s3iface.S3API

	// Bucket receiving the objects.
	//
	// Bucket is a required field
	Bucket *string

	// Key prefix prepended to every object name.
	// Default: ""
	Prefix *string

	// How long returned download URLs stay valid.
	// Default: 1h
	PresignTTL *time.Duration

	// Default: discard
	Logger log15.Logger
}

// S3Sink uploads objects to a bucket and returns presigned GET URLs.
type S3Sink struct {
	svc    s3iface.S3API
	bucket string
	prefix string
	ttl    time.Duration
	log    log15.Logger
}

// NewS3Sink returns an S3Sink configured from input.
func NewS3Sink(input *S3SinkInput) (sink *S3Sink, err error) {
	var s S3Sink

	if input.Bucket == nil || *input.Bucket == "" {
		err = errors.New("Bucket is required")
		return &s, err
	}
	s.bucket = *input.Bucket

	switch {
	case input.Client != nil:
		s.svc = input.Client
	case input.Session != nil:
		s.svc = s3.New(input.Session)
	default:
		err = errors.New("Session or Client is required")
		return &s, err
	}

	if input.Prefix != nil {
		s.prefix = *input.Prefix
	}

	DefaultPresignTTL := time.Hour
	if input.PresignTTL == nil || *input.PresignTTL <= 0 {
		input.PresignTTL = &DefaultPresignTTL
	}
	s.ttl = *input.PresignTTL

	s.log = input.Logger
	if s.log == nil {
		s.log = log15.New()
		s.log.SetHandler(log15.DiscardHandler())
	}
	return &s, err
}

// Key returns the object key name is stored under.
func (s *S3Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads body under Key(name) and returns a presigned GET URL valid
// for the configured TTL.
func (s *S3Sink) Put(ctx context.Context, name, contentType string, body []byte) (string, error) {
	key := s.Key(name)
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading s3://%s/%s", s.bucket, key)
	}
	s.log.Info("uploaded object", "bucket", s.bucket, "key", key, "bytes", len(body))

	req, _ := s.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(s.ttl)
	if err != nil {
		return "", errors.Wrapf(err, "presigning s3://%s/%s", s.bucket, key)
	}
	return url, nil
}

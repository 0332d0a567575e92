package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options addresses an S3-compatible store (MinIO in development).
type S3Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

// S3OutboxSender drops every message as an .eml object into a bucket, where
// a separate relay picks it up.
type S3OutboxSender struct {
	client objectPutter
	bucket string
	from   string
	now    func() time.Time
}

func NewS3OutboxSender(ctx context.Context, opts S3Options, from string) (*S3OutboxSender, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, oops.Code("S3_CONFIG_FAILED").Wrap(err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3OutboxSender{client: client, bucket: opts.Bucket, from: from, now: time.Now}, nil
}

func (s *S3OutboxSender) objectKey() string {
	d := s.now().UTC()
	return fmt.Sprintf("outbox/%d/%02d/%02d/%v.eml", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *S3OutboxSender) Send(ctx context.Context, msg Message) error {
	var buf bytes.Buffer
	if _, err := render(s.from, msg).WriteTo(&buf); err != nil {
		return oops.Code("MAIL_RENDER_FAILED").Wrap(err)
	}

	key := s.objectKey()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("message/rfc822"),
	})
	if err != nil {
		return oops.Code("S3_PUT_FAILED").With("bucket", s.bucket).With("key", key).Wrap(err)
	}
	return nil
}

package media

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
)

// S3Config configures an S3Store.
type S3Config struct {
	Bucket string
	Region string
	Prefix string
	// Endpoint overrides the S3 endpoint, for S3-compatible stores. It
	// switches to path-style addressing.
	Endpoint string
	// PublicURL is the base URL objects are served from. Defaults to the
	// bucket's virtual-hosted URL.
	PublicURL string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads files to an S3 bucket.
type S3Store struct {
	client    putObjectAPI
	bucket    string
	prefix    string
	publicURL string
	now       func() time.Time
}

// NewS3Store loads AWS credentials from the environment and creates a store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client putObjectAPI, cfg S3Config) *S3Store {
	public := strings.TrimRight(cfg.PublicURL, "/")
	if public == "" {
		public = "https://" + cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com"
	}
	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: public,
		now:       time.Now,
	}
}

// Save uploads r under the store prefix.
func (s *S3Store) Save(ctx context.Context, original string, r io.Reader) (Object, error) {
	name, err := Filename(original, s.now())
	if err != nil {
		return Object{}, err
	}
	key := name
	if s.prefix != "" {
		key = s.prefix + "/" + name
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(ContentType(name)),
	}); err != nil {
		return Object{}, errors.Wrapf(err, "put %s", key)
	}
	return Object{Filename: name, URL: s.publicURL + "/" + key}, nil
}

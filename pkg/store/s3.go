package store

import (
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/T3-Labs/coop-cam/pkg/config"
	"github.com/T3-Labs/coop-cam/pkg/metrics"
)

// S3Provider guarda gravações num bucket compatível com S3 (AWS, B2, MinIO).
type S3Provider struct {
	api    *s3.S3
	bucket string
}

func NewS3Provider(cfg config.S3Config) (*S3Provider, error) {
	awsCfg := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.KeyID, cfg.AppKey, ""),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return &S3Provider{api: s3.New(sess), bucket: cfg.Bucket}, nil
}

func (s *S3Provider) List(prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	err := s.api.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, item := range page.Contents {
			keys = append(keys, *item.Key)
		}
		return true
	})
	if err != nil {
		metrics.StorageOperations.WithLabelValues("list", "error").Inc()
		return nil, err
	}

	metrics.StorageOperations.WithLabelValues("list", "success").Inc()
	return keys, nil
}

func (s *S3Provider) Get(key string) (*FileObject, error) {
	out, err := s.api.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return &FileObject{
		Body:          out.Body,
		ContentType:   aws.StringValue(out.ContentType),
		ContentLength: aws.Int64Value(out.ContentLength),
		LastModified:  aws.TimeValue(out.LastModified),
	}, nil
}

func (s *S3Provider) Put(key string, body io.ReadSeeker, contentType string) error {
	_, err := s.api.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		metrics.StorageOperations.WithLabelValues("put", "error").Inc()
		return err
	}

	metrics.StorageOperations.WithLabelValues("put", "success").Inc()
	return nil
}

func (s *S3Provider) Delete(key string) error {
	_, err := s.api.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.StorageOperations.WithLabelValues("delete", "error").Inc()
		return err
	}

	metrics.StorageOperations.WithLabelValues("delete", "success").Inc()
	return nil
}

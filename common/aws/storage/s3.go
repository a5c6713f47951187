package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/littlewalk/go-walk"
	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

var _ models.KeyValueRepository = &S3Store{}

// S3Store writes JSON documents to the environment's track archive bucket.
type S3Store struct {
	client *s3.Client
	logger models.Logger
	bucket string
}

func NewS3Store(logger models.Logger, s3Client *s3.Client) *S3Store {
	env := os.Getenv(walk.Env_Env)
	if len(env) == 0 {
		env = walk.DefaultEnv
	}
	return &S3Store{s3Client, logger, "walk-" + env + "-tracks"}
}

func (s *S3Store) Store(ctx context.Context, key string, value interface{}) error {
	if jsonBytes, err := json.Marshal(value); err != nil {
		return err
	} else {
		httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
		defer httpCancel()

		putObjectIn := s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(jsonBytes),
			ContentType: aws.String("application/json"),
		}
		if _, err = s.client.PutObject(httpCtx, &putObjectIn); err != nil {
			s.logger.Errorf("storage: error storing %s/%s: %v", s.bucket, key, err)
			return err
		}
		s.logger.Debugf("storage: stored key %s (%d bytes)", key, len(jsonBytes))
	}
	return nil
}

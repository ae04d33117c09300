package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"compound-hand/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client erstellt einen S3-Client für Strato HiDrive.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.StratoS3URL,
				SigningRegion:     cfg.StratoS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.StratoS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.StratoS3Key, cfg.StratoS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// UploadArtifact lädt ein Pipeline-Artefakt (Report, Master-CSV, Register)
// hoch und gibt den Link zurück. Der Schlüssel wird unter dem Lauf-Präfix
// abgelegt, damit Artefakte mehrerer Läufe nebeneinander bestehen.
func UploadArtifact(ctx context.Context, client *s3.Client, cfg *config.Config, runPrefix, filename string, data []byte) (string, error) {
	key := path.Join("curation", runPrefix, filename)
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &cfg.StratoS3Bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", cfg.StratoS3URL, cfg.StratoS3Bucket, key), nil
}

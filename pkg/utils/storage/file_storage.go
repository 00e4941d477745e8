package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	imageutil "providerdirectory_backend/pkg/utils/image"
)

const (
	MaxFileSize = 5 * 1024 * 1024 // 5MB
)

var s3Client *s3.Client

func InitStorage() error {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-west-2"
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %v", err)
	}

	s3Client = s3.NewFromConfig(cfg)
	return nil
}

func bucketName() string {
	if b := os.Getenv("S3_BUCKET"); b != "" {
		return b
	}
	return "providerdirectory-logos"
}

// UploadLogo validates and re-encodes a provider logo and uploads it to S3,
// returning the public URL.
func UploadLogo(file *multipart.FileHeader, providerID uint) (string, error) {
	if file.Size > MaxFileSize {
		return "", fmt.Errorf("file size too large. Maximum size is %d bytes", MaxFileSize)
	}

	contentType := file.Header.Get("Content-Type")
	if !imageutil.AllowedImageTypes[contentType] {
		return "", fmt.Errorf("invalid file type. Allowed types are: jpeg, png, webp")
	}

	buf, format, err := imageutil.ProcessImage(file)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("logos/%d/%s.%s", providerID, uuid.New().String(), format)

	_, err = s3Client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(bucketName()),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("could not upload logo: %v", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucketName(), key), nil
}

package records

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SignatureStore writes signature PNGs to S3 and returns their public URL.
type SignatureStore struct {
	S3            ObjectPutter
	Bucket        string
	PublicBaseURL string
}

func NewSignatureStore(client ObjectPutter, bucket, publicBaseURL string) *SignatureStore {
	return &SignatureStore{S3: client, Bucket: bucket, PublicBaseURL: publicBaseURL}
}

// SignatureKey groups objects by a short hash of the email so keys carry no PII.
func SignatureKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return fmt.Sprintf("signatures/%s/%s.png", hex.EncodeToString(sum[:])[:16], uuid.NewString())
}

func (s *SignatureStore) Save(ctx context.Context, email string, png []byte) (string, error) {
	key := SignatureKey(email)
	_, err := s.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(png),
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("put signature s3://%s/%s: %w", s.Bucket, key, err)
	}
	return s.url(key), nil
}

func (s *SignatureStore) url(key string) string {
	if base := strings.TrimRight(s.PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.Bucket, key)
}

package app

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"retainer/internal/config"
	"retainer/internal/db"
	"retainer/internal/logging"
	"retainer/internal/records"
	"retainer/internal/security"
	"retainer/internal/shopify"
)

// Bootstrap loads the AWS config and Settings once per cold start and
// configures the package logger.
func Bootstrap(ctx context.Context) (*config.Settings, aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	s, err := config.Load(ctx, ssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, awsCfg, fmt.Errorf("load settings: %w", err)
	}
	logging.SetLogger(logging.New(os.Stdout, s.LogLevel, s.LogFormat))
	return s, awsCfg, nil
}

func ShopifyClient(s *config.Settings) *shopify.Client {
	return shopify.NewClient(s.Shop, s.APIVersion, s.AdminToken, s.StorefrontToken)
}

// RecordService opens the configured record backend.
func RecordService(ctx context.Context, s *config.Settings, awsCfg aws.Config) (*records.Service, error) {
	if err := s.RequireRecords(); err != nil {
		return nil, err
	}
	cipher, err := security.NewFieldCipher(s.RecordEncKeyB64)
	if err != nil {
		return nil, fmt.Errorf("record cipher: %w", err)
	}

	var store records.Store
	switch s.RecordsBackend {
	case config.BackendDynamo:
		store = records.NewDynamoStore(db.NewDynamoClient(awsCfg), s.RecordsTable)
	default:
		conn, err := db.OpenPostgres(ctx, s.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := records.NewPostgresStore(conn)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	}

	var sigs *records.SignatureStore
	if s.SignatureBucket != "" {
		sigs = records.NewSignatureStore(s3.NewFromConfig(awsCfg), s.SignatureBucket, s.SignaturePublicBaseURL)
	}
	return records.NewService(store, sigs, cipher), nil
}

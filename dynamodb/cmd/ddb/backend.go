package main

import (
	"context"
	"fmt"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/acksell/ddbpersist/dynamodb/ddbstore"
	"github.com/acksell/ddbpersist/internal/config"
	"github.com/acksell/ddbpersist/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// openAdmin connects to the local store when one is configured, and to DynamoDB
// otherwise. The returned func releases the backend.
func openAdmin(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ddbiface.TableAdmin, func() error, error) {
	if cfg.Store.Local() {
		store, err := ddbstore.New(ddbstore.StoreOptions{
			Path:     cfg.Store.Path,
			InMemory: cfg.Store.InMemory,
			Logger:   logging.Badger(logger),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		logger.Info("using local store", zap.String("path", cfg.Store.Path), zap.Bool("in_memory", cfg.Store.InMemory))
		return store, store.Close, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.DynamoDB.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.DynamoDB.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
	})
	logger.Info("using dynamodb", zap.String("region", awsCfg.Region), zap.String("endpoint", cfg.DynamoDB.Endpoint))
	return client, func() error { return nil }, nil
}

package tokenctl

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/aztable"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/memory"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/redisstore"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/s3store"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/sqlstore"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/config"
	"github.com/redis/go-redis/v9"
)

// Test seams for backends that need a live service.
var (
	newPostgres = func(ctx context.Context, dsn string) (backend.Backend, func() error, error) {
		b, err := sqlstore.NewPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}

	newS3 = func(ctx context.Context, opts s3store.Options) (backend.Backend, error) {
		return s3store.NewFromOptions(ctx, opts)
	}

	newAzTable = func(ctx context.Context, opts aztable.Options) (backend.Backend, error) {
		return aztable.New(ctx, opts)
	}
)

func noopClose() error { return nil }

// openBackend builds the backend named by cfg.Backend. The returned close
// function releases its connections.
func openBackend(ctx context.Context, cfg *config.Config) (backend.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), noopClose, nil

	case config.BackendPostgres:
		return newPostgres(ctx, cfg.DatabaseDSN)

	case config.BackendSQLite:
		b, err := sqlstore.NewSQLite(ctx, cfg.SqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.New(client, cfg.RedisPrefix), client.Close, nil

	case config.BackendS3:
		b, err := newS3(ctx, s3store.Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			BaseEndpoint:    cfg.S3BaseEndpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, noopClose, nil

	case config.BackendAzTable:
		b, err := newAzTable(ctx, aztable.Options{
			Table:            cfg.AzureTable,
			ConnectionString: cfg.AzureConnectionString,
			AccountName:      cfg.AzureAccountName,
			SharedKey:        cfg.AzureSharedKey,
			TenantID:         cfg.AzureTenantID,
			ClientID:         cfg.AzureClientID,
			ClientSecret:     cfg.AzureClientSecret,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, noopClose, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", common.ErrUnknownBackend, cfg.Backend)
	}
}

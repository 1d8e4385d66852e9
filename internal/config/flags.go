package config

import (
	"flag"
	"io"
)

// parseFlags applies the flags at the head of args and returns the
// remaining positional arguments (the command and its operands).
//
// Supported flags:
//
//	-c, -config string        JSON config file (read earlier by parseJson)
//	-backend string           memory, postgres, sqlite, redis, s3 or aztable
//	-namespace string         record namespace
//	-d string                 PostgreSQL DSN
//	-sqlite string            SQLite database path
//	-redis-addr string        Redis address
//	-redis-password string    Redis password
//	-redis-db int             Redis database number
//	-redis-prefix string      Redis key prefix
//	-s3-bucket string         S3 bucket
//	-s3-prefix string         S3 object key prefix
//	-s3-region string         S3 region
//	-s3-endpoint string       S3 base endpoint, e.g. "http://127.0.0.1:9000"
//	-s3-access-key string     S3 access key id
//	-s3-secret-key string     S3 secret access key
//	-az-table string          Azure table name
//	-az-connection string     Azure storage connection string
//	-az-account string        Azure storage account name
//	-az-shared-key string     Azure shared key
//	-az-tenant string         Azure AD tenant id
//	-az-client-id string      Azure AD client id
//	-az-client-secret string  Azure AD client secret
//	-hasher string            bcrypt or argon2id
//	-bcrypt-cost int          bcrypt work factor
//	-ttl duration             default token lifetime, e.g. 15m
//	-metrics-addr string      serve /metrics on this address
//	-log-level string         debug, info, warn or error
func parseFlags(config *Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("tokenctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var jsonPath string
	fs.StringVar(&jsonPath, "config", "", "path to config file")
	fs.StringVar(&jsonPath, "c", "", "path to config file (short)")

	fs.StringVar(&config.Backend, "backend", config.Backend, "storage backend")
	fs.StringVar(&config.Namespace, "namespace", config.Namespace, "record namespace")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SqlitePath, "sqlite", config.SqlitePath, "SQLite database path")

	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "Redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "Redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "Redis database number")
	fs.StringVar(&config.RedisPrefix, "redis-prefix", config.RedisPrefix, "Redis key prefix")

	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Prefix, "s3-prefix", config.S3Prefix, "S3 object key prefix")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKeyID, "s3-access-key", config.S3AccessKeyID, "S3 access key id")
	fs.StringVar(&config.S3SecretAccessKey, "s3-secret-key", config.S3SecretAccessKey, "S3 secret access key")

	fs.StringVar(&config.AzureTable, "az-table", config.AzureTable, "Azure table name")
	fs.StringVar(&config.AzureConnectionString, "az-connection", config.AzureConnectionString, "Azure storage connection string")
	fs.StringVar(&config.AzureAccountName, "az-account", config.AzureAccountName, "Azure storage account")
	fs.StringVar(&config.AzureSharedKey, "az-shared-key", config.AzureSharedKey, "Azure shared key")
	fs.StringVar(&config.AzureTenantID, "az-tenant", config.AzureTenantID, "Azure AD tenant id")
	fs.StringVar(&config.AzureClientID, "az-client-id", config.AzureClientID, "Azure AD client id")
	fs.StringVar(&config.AzureClientSecret, "az-client-secret", config.AzureClientSecret, "Azure AD client secret")

	fs.StringVar(&config.Hasher, "hasher", config.Hasher, "token hashing algorithm")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt work factor")
	fs.DurationVar(&config.TokenTTL, "ttl", config.TokenTTL, "default token lifetime")
	fs.StringVar(&config.MetricsAddr, "metrics-addr", config.MetricsAddr, "serve /metrics on this address")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

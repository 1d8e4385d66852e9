package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config. TokenTTL uses timex.Duration so
// both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	Backend   string `json:"backend"`
	Namespace string `json:"namespace"`

	DatabaseDSN string `json:"database_dsn"`
	SqlitePath  string `json:"sqlite_path"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	RedisPrefix   string `json:"redis_prefix"`

	S3Bucket          string `json:"s3_bucket"`
	S3Prefix          string `json:"s3_prefix"`
	S3Region          string `json:"s3_region"`
	S3BaseEndpoint    string `json:"s3_base_endpoint"`
	S3AccessKeyID     string `json:"s3_access_key_id"`
	S3SecretAccessKey string `json:"s3_secret_access_key"`

	AzureTable            string `json:"azure_table"`
	AzureConnectionString string `json:"azure_connection_string"`
	AzureAccountName      string `json:"azure_account_name"`
	AzureSharedKey        string `json:"azure_shared_key"`
	AzureTenantID         string `json:"azure_tenant_id"`
	AzureClientID         string `json:"azure_client_id"`
	AzureClientSecret     string `json:"azure_client_secret"`

	Hasher     string `json:"hasher"`
	BcryptCost int    `json:"bcrypt_cost"`

	TokenTTL    timex.Duration `json:"token_ttl"`
	MetricsAddr string         `json:"metrics_addr"`
	LogLevel    string         `json:"log_level"`
}

// parseJson loads the file named by -c or -config, if any. Keys absent
// from the file keep their current value.
func parseJson(config *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)

	// nothing to load
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	fromJson(config, c)
	return nil
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		Backend:               c.Backend,
		Namespace:             c.Namespace,
		DatabaseDSN:           c.DatabaseDSN,
		SqlitePath:            c.SqlitePath,
		RedisAddr:             c.RedisAddr,
		RedisPassword:         c.RedisPassword,
		RedisDB:               c.RedisDB,
		RedisPrefix:           c.RedisPrefix,
		S3Bucket:              c.S3Bucket,
		S3Prefix:              c.S3Prefix,
		S3Region:              c.S3Region,
		S3BaseEndpoint:        c.S3BaseEndpoint,
		S3AccessKeyID:         c.S3AccessKeyID,
		S3SecretAccessKey:     c.S3SecretAccessKey,
		AzureTable:            c.AzureTable,
		AzureConnectionString: c.AzureConnectionString,
		AzureAccountName:      c.AzureAccountName,
		AzureSharedKey:        c.AzureSharedKey,
		AzureTenantID:         c.AzureTenantID,
		AzureClientID:         c.AzureClientID,
		AzureClientSecret:     c.AzureClientSecret,
		Hasher:                c.Hasher,
		BcryptCost:            c.BcryptCost,
		TokenTTL:              timex.Duration{Duration: c.TokenTTL},
		MetricsAddr:           c.MetricsAddr,
		LogLevel:              c.LogLevel,
	}
}

func fromJson(config *Config, c *JsonConfig) {
	config.Backend = c.Backend
	config.Namespace = c.Namespace
	config.DatabaseDSN = c.DatabaseDSN
	config.SqlitePath = c.SqlitePath
	config.RedisAddr = c.RedisAddr
	config.RedisPassword = c.RedisPassword
	config.RedisDB = c.RedisDB
	config.RedisPrefix = c.RedisPrefix
	config.S3Bucket = c.S3Bucket
	config.S3Prefix = c.S3Prefix
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3AccessKeyID = c.S3AccessKeyID
	config.S3SecretAccessKey = c.S3SecretAccessKey
	config.AzureTable = c.AzureTable
	config.AzureConnectionString = c.AzureConnectionString
	config.AzureAccountName = c.AzureAccountName
	config.AzureSharedKey = c.AzureSharedKey
	config.AzureTenantID = c.AzureTenantID
	config.AzureClientID = c.AzureClientID
	config.AzureClientSecret = c.AzureClientSecret
	config.Hasher = c.Hasher
	config.BcryptCost = c.BcryptCost
	config.TokenTTL = c.TokenTTL.Duration
	config.MetricsAddr = c.MetricsAddr
	config.LogLevel = c.LogLevel
}

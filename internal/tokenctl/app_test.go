package tokenctl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/aztable"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/memory"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/s3store"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

// newTestApp builds an App and captures its output and log lines.
func newTestApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	app, err := NewApp(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	var out bytes.Buffer
	app.out = &out
	return app, &out, &logs
}

func TestNewApp_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  func(c *config.Config)
	}{
		{"memory", func(c *config.Config) {}},
		{"sqlite", func(c *config.Config) {
			c.Backend = config.BackendSQLite
			c.SqlitePath = filepath.Join(t.TempDir(), "tokens.db")
		}},
		{"redis", func(c *config.Config) {
			c.Backend = config.BackendRedis
			c.RedisAddr = mr.Addr()
		}},
		{"argon2id", func(c *config.Config) { c.Hasher = "argon2id" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.cfg(cfg)
			app, out, _ := newTestApp(t, cfg)

			ctx := context.Background()
			require.NoError(t, app.Exec(ctx, []string{"store", "alice", "secret", "1m", "/inbox"}))
			require.NoError(t, app.Exec(ctx, []string{"auth", "alice", "secret"}))
			require.NoError(t, app.Exec(ctx, []string{"length"}))

			assert.Equal(t, "stored\nok /inbox\n1\n", out.String())
		})
	}
}

func TestNewApp_Errors(t *testing.T) {
	t.Run("unknown hasher", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Hasher = "md5"
		_, err := NewApp(context.Background(), cfg, logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		assert.ErrorIs(t, err, common.ErrUnknownHasher)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Backend = "mongo"
		_, err := NewApp(context.Background(), cfg, logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		assert.ErrorIs(t, err, common.ErrUnknownBackend)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig(t)
		cfg.Backend = config.BackendRedis
		cfg.RedisAddr = addr
		_, err = NewApp(context.Background(), cfg, logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		assert.ErrorContains(t, err, "redis ping")
	})
}

func TestOpenBackend_Seams(t *testing.T) {
	origPG, origS3, origAz := newPostgres, newS3, newAzTable
	t.Cleanup(func() { newPostgres, newS3, newAzTable = origPG, origS3, origAz })

	var gotDSN string
	var gotS3 s3store.Options
	var gotAz aztable.Options
	closed := false

	newPostgres = func(_ context.Context, dsn string) (backend.Backend, func() error, error) {
		gotDSN = dsn
		return memory.New(), func() error { closed = true; return nil }, nil
	}
	newS3 = func(_ context.Context, opts s3store.Options) (backend.Backend, error) {
		gotS3 = opts
		return memory.New(), nil
	}
	newAzTable = func(_ context.Context, opts aztable.Options) (backend.Backend, error) {
		gotAz = opts
		return memory.New(), nil
	}

	ctx := context.Background()
	cfg := testConfig(t)

	cfg.Backend = config.BackendPostgres
	cfg.DatabaseDSN = "postgres://u:p@db/tokens"
	_, closeFn, err := openBackend(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.Equal(t, "postgres://u:p@db/tokens", gotDSN)
	assert.True(t, closed)

	cfg.Backend = config.BackendS3
	cfg.S3Bucket = "tokens"
	cfg.S3BaseEndpoint = "http://minio:9000"
	cfg.S3AccessKeyID = "ak"
	_, _, err = openBackend(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "tokens", gotS3.Bucket)
	assert.Equal(t, "http://minio:9000", gotS3.BaseEndpoint)
	assert.Equal(t, "ak", gotS3.AccessKeyID)

	cfg.Backend = config.BackendAzTable
	cfg.AzureConnectionString = "UseDevelopmentStorage=true"
	_, _, err = openBackend(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "PasswordlessTokens", gotAz.Table)
	assert.Equal(t, "UseDevelopmentStorage=true", gotAz.ConnectionString)

	newS3 = func(context.Context, s3store.Options) (backend.Backend, error) {
		return nil, errors.New("no credentials")
	}
	cfg.Backend = config.BackendS3
	_, _, err = openBackend(ctx, cfg)
	require.ErrorContains(t, err, "no credentials")
}

func TestRun_ServesMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"
	app, _, _ := newTestApp(t, cfg)

	ctx := context.Background()
	require.NoError(t, app.Run(ctx, []string{"store", "alice", "secret"}))
	require.NotNil(t, app.metricsAddr)

	resp, err := http.Get("http://" + app.metricsAddr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tokenstore_operations_total{operation="store_or_update",result="ok"} 1`)
}

func TestRun_REPL(t *testing.T) {
	app, out, _ := newTestApp(t, testConfig(t))
	app.in = strings.NewReader(strings.Join([]string{
		"",
		"store bob hunter2 1h /next",
		"auth bob wrong",
		"auth bob hunter2",
		"frobnicate",
		"length",
		"exit",
		"length",
	}, "\n"))

	require.NoError(t, app.Run(context.Background(), nil))

	got := out.String()
	assert.Contains(t, got, "stored\n")
	assert.Contains(t, got, "denied\n")
	assert.Contains(t, got, "ok /next\n")
	assert.Contains(t, got, `error: usage: unknown command "frobnicate"`)
	assert.Contains(t, got, "1\n")
	assert.True(t, strings.HasSuffix(got, "Bye!\n"), "nothing runs after exit")
}

func TestRun_REPLEndsOnEOF(t *testing.T) {
	app, out, _ := newTestApp(t, testConfig(t))
	app.in = strings.NewReader("clear")

	require.NoError(t, app.Run(context.Background(), nil))
	assert.Contains(t, out.String(), "cleared\n")
}

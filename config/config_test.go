package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg, err := LoadServerConfig(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadSize)
	assert.Equal(t, 1000, cfg.MaxPages)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"stdout"}, cfg.LogOutputs())
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	cfg, err := LoadServerConfig(map[string]string{
		"SERVER_PORT":          "9000",
		"CORS_ALLOWED_ORIGINS": "http://a.test,http://b.test",
		"MAX_PAGES":            "10",
		"LOG_FILE":             "/var/log/pdfvoice.log",
		"SERVER_WRITE_TIMEOUT": "90s",
	})
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, 90*time.Second, cfg.WriteTimeout)
	assert.Equal(t, []string{"stdout", "/var/log/pdfvoice.log"}, cfg.LogOutputs())
}

func TestLoadServerConfig_Invalid(t *testing.T) {
	_, err := LoadServerConfig(map[string]string{"MAX_PAGES": "0"})
	assert.Error(t, err)

	_, err = LoadServerConfig(map[string]string{"MAX_UPLOAD_SIZE": "lots"})
	assert.Error(t, err)
}

func TestLoadQueueConfig(t *testing.T) {
	cfg, err := LoadQueueConfig(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Hour, cfg.Retention)
	assert.Equal(t, 24*time.Hour, cfg.StatusTTL)
	assert.Equal(t, 2, cfg.MaxRetry)
	assert.Equal(t, ":9091", cfg.MetricsAddr)

	_, err = LoadQueueConfig(map[string]string{"WORKER_CONCURRENCY": "0"})
	assert.Error(t, err)
}

func TestLoadStorageConfig(t *testing.T) {
	cfg, err := LoadStorageConfig(map[string]string{"DOCUMENT_SOURCE": " MinIO "})
	require.NoError(t, err)
	assert.Equal(t, SourceMinio, cfg.Source)

	cfg, err = LoadStorageConfig(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, SourceNone, cfg.Source)

	_, err = LoadStorageConfig(map[string]string{"DOCUMENT_SOURCE": "ftp"})
	assert.Error(t, err)
}

func TestLoadSpeechConfig(t *testing.T) {
	cfg, err := LoadSpeechConfig(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Accelerator)
	assert.Equal(t, FallbackGoogle, cfg.FallbackProvider)
	assert.Equal(t, "gtts-cli", cfg.CLICommand)

	cfg, err = LoadSpeechConfig(map[string]string{"TTS_ACCELERATOR": "OFF", "TTS_FALLBACK_PROVIDER": "cli"})
	require.NoError(t, err)
	assert.Equal(t, "off", cfg.Accelerator)
	assert.Equal(t, FallbackCLI, cfg.FallbackProvider)

	_, err = LoadSpeechConfig(map[string]string{"TTS_ACCELERATOR": "maybe"})
	assert.Error(t, err)

	_, err = LoadSpeechConfig(map[string]string{"TTS_FALLBACK_PROVIDER": "espeak"})
	assert.Error(t, err)
}

func TestLoadObjectStoreConfigs(t *testing.T) {
	s3, err := LoadS3Config(map[string]string{"AWS_S3_BUCKET_NAME": "docs"})
	require.NoError(t, err)
	assert.Equal(t, "docs", s3.BucketName)
	assert.Equal(t, "us-east-1", s3.Region)

	minio, err := LoadMinioConfig(map[string]string{"MINIO_ENDPOINT": "localhost:9000", "MINIO_USE_SSL": "true"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", minio.Endpoint)
	assert.True(t, minio.UseSSL)
}

func TestLoadTranslateAndLanguagesConfig(t *testing.T) {
	tr, err := LoadTranslateConfig(map[string]string{"TRANSLATE_TIMEOUT": "5s"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, tr.Timeout)
	assert.Equal(t, 5000, tr.ChunkLength)

	langs, err := LoadLanguagesConfig(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "English", langs.Default)
	assert.Empty(t, langs.File)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xhttp "IndexSDK/pkg/http"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "api_key: secret\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EnvProd, c.Environment)
	assert.Equal(t, xhttp.DefaultBaseURL, c.API.BaseURL)
	assert.Equal(t, 3, c.API.Retries)
	assert.Equal(t, []int{502, 504}, c.API.StatusForcelist)
	assert.Equal(t, "memory", c.Cache.Type)
	assert.Equal(t, 10*time.Minute, c.Cache.TTL)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, SinkStdout, c.Export.Sink)
	assert.Equal(t, -1, c.Export.Kafka.RequiredAcks)
	assert.Equal(t, 9000, c.Export.ClickHouse.Port)
}

func TestLoadStagingBaseURL(t *testing.T) {
	path := writeConfig(t, "api_key: secret\nenvironment: staging\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, xhttp.StagingBaseURL, c.API.BaseURL)
}

func TestLoadExplicitBaseURLWins(t *testing.T) {
	path := writeConfig(t, "api_key: secret\nenvironment: staging\napi:\n  base_url: http://localhost:8080\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.API.BaseURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing key":    "environment: prod\n",
		"bad env":        "api_key: k\nenvironment: qa\n",
		"custom no url":  "api_key: k\nenvironment: custom\n",
		"bad cache":      "api_key: k\ncache:\n  type: disk\n",
		"bad sink":       "api_key: k\nexport:\n  sink: s3\n",
		"kafka no peers": "api_key: k\nexport:\n  sink: kafka\n",
		"bad method":     "api_key: k\napi:\n  allowed_methods: [FETCH]\n",
		"metrics addr":   "api_key: k\nmetrics:\n  addr: :9100\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "api_key: from-file\nexport:\n  kafka:\n    topic: file-topic\n")
	t.Setenv("MERQ_API_KEY", "from-env")
	t.Setenv("MERQ_EXPORT_SINK", "kafka")
	t.Setenv("MERQ_KAFKA_BROKERS", "a:9092,b:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.APIKey)
	assert.Equal(t, SinkKafka, c.Export.Sink)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Export.Kafka.Brokers)
	assert.Equal(t, "file-topic", c.Export.Kafka.Topic)
}

func TestLoadWithEnvWithoutFile(t *testing.T) {
	t.Setenv("MERQ_API_KEY", "k")
	t.Setenv("MERQ_ENVIRONMENT", "staging")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, xhttp.StagingBaseURL, c.API.BaseURL)
	assert.Equal(t, "k", c.APIKey)
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("MERQ_API_KEY", "k")

	c, err := LoadWithEnv("../../config/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, c.API.RequestTimeout)
	assert.Equal(t, "security_metrics", c.Export.ClickHouse.Table)
}

package mainconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/telehealth-coordination/internal/config"
)

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnvReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TELEHEALTH_DOTENV_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TELEHEALTH_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("TELEHEALTH_DOTENV_PROBE"))
}

func TestNewSQSClientEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", awsCfg.Region)

	client := NewSQSClient(awsCfg, cfg)
	assert.Equal(t, "http://localhost:4566", aws.ToString(client.Options().BaseEndpoint))

	cfg.AWSEndpointOverride = ""
	assert.Nil(t, NewSQSClient(awsCfg, cfg).Options().BaseEndpoint)
}

func TestQueuesConfigured(t *testing.T) {
	assert.False(t, QueuesConfigured(&appconfig.Config{}))
	assert.True(t, QueuesConfigured(&appconfig.Config{DomainEventsQueueURL: "https://sqs.local/domain"}))
}

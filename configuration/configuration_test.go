package configuration_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungnx/chathist/configuration"
)

func TestParse_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	config, err := configuration.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 3002, config.Port)
	assert.Equal(t, "openai", config.Provider.Name)
	assert.Equal(t, "gpt-4o-mini", config.Provider.DefaultModel)
	assert.Equal(t, 30, config.RequestTimeoutSeconds)
	assert.Equal(t, 60, config.AttachmentTimeoutSeconds)

	// The file now exists and parses again to the same values.
	_, err = os.Stat(path)
	require.NoError(t, err)
	again, err := configuration.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, config.Port, again.Port)
}

func TestParse_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	contents, err := json.Marshal(map[string]any{
		"port":     9000,
		"database": filepath.Join(t.TempDir(), "custom.db"),
		"provider": map[string]any{
			"name":          "anthropic",
			"api_key":       "from-file",
			"default_model": "claude-sonnet-4-20250514",
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, contents, 0644))

	config, err := configuration.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, config.Port)
	assert.Equal(t, "anthropic", config.Provider.Name)
	assert.Equal(t, "from-file", config.Provider.APIKey)
}

func TestParse_BackfillsOmittedFields(t *testing.T) {
	// A hand-edited file that only names the provider still yields a
	// usable port and non-zero timeouts.
	path := filepath.Join(t.TempDir(), "config.json")
	contents, err := json.Marshal(map[string]any{
		"provider": map[string]any{"name": "openai", "api_key": "k"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, contents, 0644))

	config, err := configuration.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 3002, config.Port)
	assert.NotEmpty(t, config.Database)
	assert.Equal(t, 30, config.RequestTimeoutSeconds)
	assert.Equal(t, 60, config.AttachmentTimeoutSeconds)
	assert.Equal(t, "gpt-4o-mini", config.Provider.DefaultModel)
	assert.Equal(t, "https://api.openai.com/v1", config.Provider.APIHost)
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	contents, err := json.Marshal(map[string]any{
		"provider": map[string]any{"name": "openai"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, contents, 0644))

	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("CHATHIST_DATABASE_URL", "postgres://localhost/chathist")

	config, err := configuration.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Provider.APIKey)
	assert.Equal(t, "postgres://localhost/chathist", config.DatabaseURL)
}

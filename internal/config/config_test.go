package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "openai"
model = "gpt-4o-mini"

[batch]
workers = 2
min_score = 0.4

[schemas.crm]
id = ["crm_id"]
email = ["mail"]

[merge.fields]
"Position" = "jobtitle"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 2, cfg.Batch.Workers)
	require.NotNil(t, cfg.Batch.MinScore)
	assert.InDelta(t, 0.4, *cfg.Batch.MinScore, 1e-9)
	assert.Equal(t, []string{"crm_id"}, cfg.Schemas.CRM.ID)
	assert.Equal(t, map[string]string{"Position": "jobtitle"}, cfg.Merge.Fields)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "[llm\nprovider=")
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse TOML")
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, DefaultWorkers, cfg.Batch.Workers)
	assert.InDelta(t, DefaultMinScore, cfg.Batch.MinScoreValue(), 1e-9)
	assert.Equal(t, DefaultAIMaxConcurrent, cfg.Adjudication.MaxConcurrent)
	assert.Equal(t, DefaultCRMSchema(), cfg.Schemas.CRM)
	assert.Equal(t, DefaultProfileSchema(), cfg.Schemas.Profile)
	assert.Equal(t, []string{"description"}, cfg.Merge.Append)
	assert.Equal(t, "components", cfg.Clusters.Method)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_PartialSchemaKeepsOverrides(t *testing.T) {
	cfg := &Config{}
	cfg.Schemas.CRM.Email = []string{"mail"}
	cfg.ApplyDefaults()

	assert.Equal(t, []string{"mail"}, cfg.Schemas.CRM.Email)
	assert.Equal(t, []string{"contactid"}, cfg.Schemas.CRM.ID)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ADJUDICATION_ENABLED", "true")

	cfg := &Config{}
	cfg.ApplyEnv()

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.True(t, cfg.Adjudication.Enabled)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "postgres"
	tooHigh := 1.5
	cfg.Batch.MinScore = &tooHigh
	cfg.Adjudication.Enabled = true
	cfg.Adjudication.Prompt = "no placeholders"
	cfg.Clusters.Method = "louvain"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "store.backend")
	assert.ErrorContains(t, err, "batch.min_score")
	assert.ErrorContains(t, err, "adjudication.prompt")
	assert.ErrorContains(t, err, "clusters.method")
}

func TestLoadOrDefault_ExplicitZeroMinScore(t *testing.T) {
	path := writeConfig(t, `
[batch]
min_score = 0.0
`)
	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Batch.MinScore)
	assert.Zero(t, cfg.Batch.MinScoreValue())

	unset, err := LoadOrDefault(writeConfig(t, "[batch]\nworkers = 2\n"))
	require.NoError(t, err)
	assert.InDelta(t, DefaultMinScore, unset.Batch.MinScoreValue(), 1e-9)
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

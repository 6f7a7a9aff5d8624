package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvPrecedence(t *testing.T) {
	Env = map[string]string{"APP_PORT": "4000"}
	t.Cleanup(func() { Env = nil })

	t.Setenv("APP_PORT", "5000")
	t.Setenv("APP_HOST", "0.0.0.0")

	assert.Equal(t, "4000", GetEnv("APP_PORT", "3000"), "file value wins over process env")
	assert.Equal(t, "0.0.0.0", GetEnv("APP_HOST", "localhost"), "process env wins over default")
	assert.Equal(t, "fallback", GetEnv("UNSET_KEY", "fallback"))
}

func TestSetupEnvFileMissingFallsBackToProcessEnv(t *testing.T) {
	t.Setenv("VARDERA_ENV_FILE", filepath.Join(t.TempDir(), "does-not-exist.env"))
	t.Setenv("APP_ENV", "dev")
	t.Cleanup(func() { Env = nil })

	assert.NotPanics(t, SetupEnvFile)
	assert.NotNil(t, Env)
	assert.Empty(t, Env)
	assert.True(t, IsDev())
}

func TestSetupEnvFileOverridePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(file, []byte("APP_SECRET=s3cret\n"), 0o600))

	t.Setenv("VARDERA_ENV_FILE", file)
	t.Cleanup(func() { Env = nil })

	SetupEnvFile()
	assert.Equal(t, "s3cret", GetEnv("APP_SECRET", ""))
}

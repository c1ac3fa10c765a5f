package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	err := Run(args, &stdout, &stderr, func(int) {})
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "autofactool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_DefaultCommand(t *testing.T) {
	stdout, _, err := run(t)
	require.NoError(t, err)
	assert.Equal(t, "hello: something\nJohny\nLili\n", stdout)
}

func TestRun_Filter(t *testing.T) {
	stdout, _, err := run(t, "run", "joh")
	require.NoError(t, err)
	assert.Equal(t, "hello: something\nJohny\n", stdout)
}

func TestRun_FlagSelectsService(t *testing.T) {
	stdout, _, err := run(t, "--flag")
	require.NoError(t, err)
	assert.Contains(t, stdout, "hello: something else\n")
}

func TestRun_ConfigFile(t *testing.T) {
	path := writeConfig(t, "module:\n  flag: true\n  greeting: hi\n")

	stdout, _, err := run(t, "--config", path, "run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "hi: something else\n")
}

func TestRun_Environment(t *testing.T) {
	t.Setenv("AUTOFACTOOL_MODULE_GREETING", "hey")

	stdout, _, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, stdout, "hey: something\n")
}

func TestRun_DebugLogging(t *testing.T) {
	_, stderr, err := run(t, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, "configuring registry")
	assert.Contains(t, stderr, "provider built")
}

func TestRun_InvalidLogLevel(t *testing.T) {
	_, _, err := run(t, "--log-level", "loud")
	assert.ErrorIs(t, err, errLogLevel)

	path := writeConfig(t, "log_level: loud\n")
	_, _, err = run(t, "--config", path)
	assert.ErrorIs(t, err, errLogLevel)
}

func TestRun_MissingConfig(t *testing.T) {
	_, _, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		stdout, _, err := run(t, "describe")
		require.NoError(t, err)

		var doc struct {
			Registrations []map[string]any `yaml:"registrations"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc))
		assert.NotEmpty(t, doc.Registrations)
		assert.Contains(t, stdout, "lifetime: Singleton")
	})

	t.Run("dot", func(t *testing.T) {
		stdout, _, err := run(t, "describe", "--format", "dot")
		require.NoError(t, err)
		assert.Contains(t, stdout, "digraph dependencies {")
	})

	t.Run("text", func(t *testing.T) {
		stdout, _, err := run(t, "describe", "-f", "text")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Level 0:")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := run(t, "describe", "--format", "svg")
		assert.Error(t, err)
	})
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "INFO", ""} {
		_, err := parseLogLevel(level)
		assert.NoError(t, err, level)
	}
}

func TestDefaultSettings(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, int64(10*1024*1024), cfg.GetInt64(KeyMaxFileSize, 0))
	assert.Equal(t, 10000, cfg.GetInt(KeyMaxFileCount, 0))
	assert.Equal(t, 8192, cfg.GetInt(KeyMaxContextSize, 0))
	assert.Equal(t, 10, cfg.GetInt(KeyMaxHistory, 0))
	assert.Equal(t, "CodeLve", cfg.GetString(KeyAssistantName, ""))
	assert.InDelta(t, 0.95, cfg.GetFloat(KeyTopP, 0), 1e-9)
	assert.False(t, cfg.GetBool(KeyStream, true))
	assert.Contains(t, cfg.GetString(KeyCodeTemplate, ""), "{context}")
}

func TestGetters_ReturnDefaultWhenAbsent(t *testing.T) {
	cfg := New()

	assert.Equal(t, "fallback", cfg.GetString("missing.key", "fallback"))
	assert.Equal(t, 7, cfg.GetInt("missing.key", 7))
	assert.Equal(t, int64(9), cfg.GetInt64("missing.key", 9))
	assert.True(t, cfg.GetBool("missing.key", true))
	assert.InDelta(t, 1.5, cfg.GetFloat("missing.key", 1.5), 1e-9)
}

func TestSet_Overrides(t *testing.T) {
	cfg := New()
	cfg.Set(KeyMaxHistory, 3)
	assert.Equal(t, 3, cfg.GetInt(KeyMaxHistory, 10))
}

func TestLoadConfigs_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "llm:\n  model: deepseek-coder\n  max_context_size: 1024\ncontext:\n  max_history: 4\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codelve-config.yml"), []byte(yaml), 0644))
	t.Setenv("CODELVE_LLM_MODEL", "starcoder")

	rootCmd := &cobra.Command{Use: "codelve"}
	InitFlags(rootCmd)

	cfg, err := LoadConfigs(rootCmd, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "codelve-config.yml"), cfg.File)
	assert.Equal(t, "starcoder", cfg.GetString(KeyModel, ""))
	assert.Equal(t, 1024, cfg.GetInt(KeyMaxContextSize, 0))
	assert.Equal(t, 4, cfg.GetInt(KeyMaxHistory, 0))
}

func TestLoadConfigs_FlagWins(t *testing.T) {
	dir := t.TempDir()
	yaml := "context:\n  max_history: 4\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codelve-config.yml"), []byte(yaml), 0644))

	rootCmd := &cobra.Command{Use: "codelve"}
	InitFlags(rootCmd)
	require.NoError(t, rootCmd.PersistentFlags().Set("max_history", "2"))

	cfg, err := LoadConfigs(rootCmd, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.GetInt(KeyMaxHistory, 0))
}

func TestLoadConfigs_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadConfigs(nil, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, "stub", cfg.GetString(KeyProvider, ""))
}

func TestSettings_SortedAndWithoutTemplates(t *testing.T) {
	lines := New().Settings()

	require.NotEmpty(t, lines)
	for i := 1; i < len(lines); i++ {
		assert.LessOrEqual(t, lines[i-1], lines[i])
	}
	for _, line := range lines {
		assert.NotContains(t, line, "prompts.")
	}
	assert.Contains(t, lines, "context.max_history = 10")
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{".go", ".py", ".rs"}, ParseList(" go, .py ,,rs ", true))
	assert.Equal(t, []string{"node_modules", ".git"}, ParseList("node_modules,.git", false))
	assert.Empty(t, ParseList("", true))
}

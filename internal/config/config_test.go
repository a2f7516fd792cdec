package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "annot.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "annotation.csv", cfg.AnnotationFile)
	assert.Equal(t, "zh", cfg.SummaryLanguage)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written Config
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, Default(), written)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
label_options_path: /etc/annot/options.json
encoding_positions_path: /etc/annot/positions.json
data_dir: /srv/data
summary_language: en
`), 0644))

	t.Setenv("ANNOT_DATA_DIR", "/override")
	t.Setenv("ANNOT_DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/annot/options.json", cfg.LabelOptionsPath)
	assert.Equal(t, "/override", cfg.DataDir)
	assert.Equal(t, "en", cfg.SummaryLanguage)
	assert.Equal(t, "summary.txt", cfg.SummaryFile)
	assert.True(t, cfg.Debug)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("summary_language: fr\n"), 0644))
	_, err := Load(bad)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("data_dir: [unclosed\n"), 0644))
	_, err = Load(broken)
	assert.Error(t, err)
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pbaille/annot/internal/annotation"
	"github.com/pbaille/annot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// setupHome writes a two-label taxonomy, a settings file and a data folder
// holding f1.tsv. It returns the settings path and the data folder.
func setupHome(t *testing.T) (string, string) {
	t.Helper()
	home := t.TempDir()
	dataDir := filepath.Join(home, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "f1.tsv"), []byte("hello\n"), 0644))

	options := []domain.LabelOption{
		{Key: "A", Label: domain.LocalizedText{Zh: "甲", En: "Alpha"}, SubLabels: []domain.SubLabelOption{
			{Key: "A1", Label: domain.LocalizedText{Zh: "甲一", En: "Alpha one"}},
		}},
		{Key: "B", Label: domain.LocalizedText{Zh: "乙", En: "Beta"}},
	}
	writeJSON(t, filepath.Join(home, "label_options.json"), options)
	writeJSON(t, filepath.Join(home, "encoding_positions.json"), map[string]int{"A": 0, "B": 1, "A1": 0})

	settings := map[string]string{
		"label_options_path":      filepath.Join(home, "label_options.json"),
		"encoding_positions_path": filepath.Join(home, "encoding_positions.json"),
		"data_dir":                dataDir,
		"annotation_file":         "annotation.csv",
		"summary_file":            "summary.txt",
		"summary_language":        "en",
		"server_addr":             ":0",
	}
	data, err := yaml.Marshal(settings)
	require.NoError(t, err)
	cfgPath := filepath.Join(home, "annot.yaml")
	require.NoError(t, os.WriteFile(cfgPath, data, 0644))
	return cfgPath, dataDir
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func run(cfgPath string, args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	return cmd.Execute()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAddPersistsAcrossCommands(t *testing.T) {
	cfgPath, dataDir := setupHome(t)

	require.NoError(t, run(cfgPath, "add", "f1.tsv", "A1"))
	require.NoError(t, run(cfgPath, "add", "f1.tsv", "B"))

	assert.Equal(t, "f1.tsv,11,1\n", readFile(t, filepath.Join(dataDir, "annotation.csv")))
	assert.Equal(t, "11,1", readFile(t, filepath.Join(dataDir, "f1.txt")))
	assert.Equal(t, "[Alpha]:1\n[Beta]:1\n\n[Alpha one]:1\n", readFile(t, filepath.Join(dataDir, "summary.txt")))
}

func TestUnreadableState(t *testing.T) {
	cfgPath, dataDir := setupHome(t)
	statePath := filepath.Join(dataDir, "annotation.csv")
	// saved under a taxonomy with a third label
	require.NoError(t, os.WriteFile(statePath, []byte("f1.tsv,101,0\n"), 0644))

	err := run(cfgPath, "files")
	require.Error(t, err)
	assert.ErrorIs(t, err, annotation.ErrMalformedAnnotation)
	assert.Contains(t, err.Error(), "annot reset")

	require.NoError(t, run(cfgPath, "reset", "--yes"))
	assert.Empty(t, readFile(t, statePath))
	require.NoError(t, run(cfgPath, "files"))
}

func TestImportReplacesUnreadableState(t *testing.T) {
	cfgPath, dataDir := setupHome(t)
	statePath := filepath.Join(dataDir, "annotation.csv")
	require.NoError(t, os.WriteFile(statePath, []byte("f1.tsv,1x,0\n"), 0644))

	saved := filepath.Join(t.TempDir(), "saved.csv")
	require.NoError(t, os.WriteFile(saved, []byte("f1.tsv,01,0\ngone.tsv,10,1\n"), 0644))

	require.NoError(t, run(cfgPath, "import", "--yes", saved))
	assert.Equal(t, "f1.tsv,01,0\n", readFile(t, statePath))
	assert.Equal(t, "[Beta]:1\n\n", readFile(t, filepath.Join(dataDir, "summary.txt")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))

	text := strings.Repeat("标注数据", 10)
	got := truncate(text, 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "标注数据标注数...", got)
	assert.Equal(t, 10, utf8.RuneCountInString(got))

	assert.Equal(t, "标注", truncate("标注", 2))
}

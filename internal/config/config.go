package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds annot settings
type Config struct {
	LabelOptionsPath      string `yaml:"label_options_path" validate:"required"`
	EncodingPositionsPath string `yaml:"encoding_positions_path" validate:"required"`
	DataDir               string `yaml:"data_dir" validate:"required"`
	AnnotationFile        string `yaml:"annotation_file" validate:"required"`
	SummaryFile           string `yaml:"summary_file" validate:"required"`
	SummaryLanguage       string `yaml:"summary_language" validate:"oneof=zh en"`
	ServerAddr            string `yaml:"server_addr" validate:"required"`
	Debug                 bool   `yaml:"debug"`
}

var validate = validator.New()

// Default returns the settings written on first run
func Default() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".annot")
	return Config{
		LabelOptionsPath:      filepath.Join(base, "label_options.json"),
		EncodingPositionsPath: filepath.Join(base, "encoding_positions.json"),
		DataDir:               filepath.Join(base, "data"),
		AnnotationFile:        "annotation.csv",
		SummaryFile:           "summary.txt",
		SummaryLanguage:       "zh",
		ServerAddr:            ":8080",
	}
}

// DefaultPath is where the settings file lives unless --config says otherwise
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".annot", "annot.yaml")
}

// Load reads the settings file at path, creating it with defaults if missing,
// then applies ANNOT_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func applyEnv(cfg *Config) {
	cfg.LabelOptionsPath = getEnv("ANNOT_LABEL_OPTIONS", cfg.LabelOptionsPath)
	cfg.EncodingPositionsPath = getEnv("ANNOT_ENCODING_POSITIONS", cfg.EncodingPositionsPath)
	cfg.DataDir = getEnv("ANNOT_DATA_DIR", cfg.DataDir)
	cfg.SummaryLanguage = getEnv("ANNOT_SUMMARY_LANGUAGE", cfg.SummaryLanguage)
	cfg.ServerAddr = getEnv("ANNOT_SERVER_ADDR", cfg.ServerAddr)
	cfg.Debug = getEnvBool("ANNOT_DEBUG", cfg.Debug)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

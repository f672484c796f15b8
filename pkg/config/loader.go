package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arguslabs/argus/pkg/models"
)

// FileConfig mirrors config.json with pointer fields so that explicitly
// saved false/zero values survive the overlay onto defaults.
type FileConfig struct {
	GuardMode               *string `json:"guard_mode"`
	MaxSteps                *int    `json:"max_steps"`
	EnableAIEval            *bool   `json:"enable_ai_eval"`
	EnableShadowBrowser     *bool   `json:"enable_shadow_browser"`
	LoopWindow              *int    `json:"loop_window"`
	LoopThreshold           *int    `json:"loop_threshold"`
	MaxSameTool             *int    `json:"max_same_tool"`
	SecurityScoreThreshold  *int    `json:"security_score_threshold"`
	RelevanceScoreThreshold *int    `json:"relevance_score_threshold"`
	AutoInterveneOnLoop     *bool   `json:"auto_intervene_on_loop"`
	LogRetentionDays        *int    `json:"log_retention_days"`
}

// Load reads config.json at path, expands {{.VAR}} templates, and overlays
// the saved keys onto the built-in defaults. A missing file yields pure
// defaults with no error; an unreadable or malformed file yields defaults
// plus a LoadError so callers can decide how loudly to complain.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Defaults(), NewLoadError(filepath.Base(path), err)
	}

	data = ExpandEnv(data)

	var file FileConfig
	if err := json.Unmarshal(data, &file); err != nil {
		return Defaults(), NewLoadError(filepath.Base(path), fmt.Errorf("%w: %v", ErrInvalidJSON, err))
	}

	return resolve(&file), nil
}

// resolve overlays saved keys onto defaults. Keys absent from the file keep
// their default value.
func resolve(file *FileConfig) *Config {
	cfg := Defaults()
	if file == nil {
		return cfg
	}
	if file.GuardMode != nil {
		cfg.GuardMode = models.GuardMode(*file.GuardMode)
	}
	if file.MaxSteps != nil {
		cfg.MaxSteps = *file.MaxSteps
	}
	if file.EnableAIEval != nil {
		cfg.EnableAIEval = *file.EnableAIEval
	}
	if file.EnableShadowBrowser != nil {
		cfg.EnableShadowBrowser = *file.EnableShadowBrowser
	}
	if file.LoopWindow != nil {
		cfg.LoopWindow = *file.LoopWindow
	}
	if file.LoopThreshold != nil {
		cfg.LoopThreshold = *file.LoopThreshold
	}
	if file.MaxSameTool != nil {
		cfg.MaxSameTool = *file.MaxSameTool
	}
	if file.SecurityScoreThreshold != nil {
		cfg.SecurityScoreThreshold = *file.SecurityScoreThreshold
	}
	if file.RelevanceScoreThreshold != nil {
		cfg.RelevanceScoreThreshold = *file.RelevanceScoreThreshold
	}
	if file.AutoInterveneOnLoop != nil {
		cfg.AutoInterveneOnLoop = *file.AutoInterveneOnLoop
	}
	if file.LogRetentionDays != nil {
		cfg.LogRetentionDays = *file.LogRetentionDays
	}
	return cfg
}

// Save writes the full config atomically (temp file + rename) so a crash
// mid-write never leaves a truncated config.json behind.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

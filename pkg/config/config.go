package config

import (
	"fmt"
	"sort"

	"github.com/arguslabs/argus/pkg/models"
)

// Config holds the runtime guard configuration. All keys are persisted in
// config.json under the log root and adjustable at runtime via the API.
type Config struct {
	// GuardMode controls whether detections only record issues (monitor)
	// or also cancel tool calls (intervene/enforce).
	GuardMode models.GuardMode `json:"guard_mode"`

	// MaxSteps is the hard step budget per session.
	MaxSteps int `json:"max_steps"`

	// EnableAIEval turns the AI judge on or off. Heuristic scoring always runs.
	EnableAIEval bool `json:"enable_ai_eval"`

	// EnableShadowBrowser queues shadow verification descriptors for
	// browser-producing steps.
	EnableShadowBrowser bool `json:"enable_shadow_browser"`

	// LoopWindow is the sliding window size for loop detection.
	LoopWindow int `json:"loop_window"`

	// LoopThreshold is how many identical calls within the window count
	// as a loop.
	LoopThreshold int `json:"loop_threshold"`

	// MaxSameTool is the per-session cap on calls to a single tool.
	MaxSameTool int `json:"max_same_tool"`

	// SecurityScoreThreshold marks steps below it as security-critical
	// in the audit log.
	SecurityScoreThreshold int `json:"security_score_threshold"`

	// RelevanceScoreThreshold marks steps below it as IRRELEVANT.
	RelevanceScoreThreshold int `json:"relevance_score_threshold"`

	// AutoInterveneOnLoop cancels looping tool calls even in monitor mode.
	AutoInterveneOnLoop bool `json:"auto_intervene_on_loop"`

	// LogRetentionDays is how long session, step and issue files are kept.
	LogRetentionDays int `json:"log_retention_days"`
}

// Defaults returns the built-in configuration used when config.json is
// missing or partial.
func Defaults() *Config {
	return &Config{
		GuardMode:               models.GuardModeMonitor,
		MaxSteps:                50,
		EnableAIEval:            true,
		EnableShadowBrowser:     false,
		LoopWindow:              5,
		LoopThreshold:           3,
		MaxSameTool:             10,
		SecurityScoreThreshold:  70,
		RelevanceScoreThreshold: 30,
		AutoInterveneOnLoop:     false,
		LogRetentionDays:        30,
	}
}

// Validate checks all fields for sane values.
func (c *Config) Validate() error {
	if !c.GuardMode.IsValid() {
		return fmt.Errorf("%w: guard_mode %q", ErrInvalidValue, c.GuardMode)
	}
	positive := map[string]int{
		"max_steps":          c.MaxSteps,
		"loop_window":        c.LoopWindow,
		"loop_threshold":     c.LoopThreshold,
		"max_same_tool":      c.MaxSameTool,
		"log_retention_days": c.LogRetentionDays,
	}
	for name, v := range positive {
		if v < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %d", ErrInvalidValue, name, v)
		}
	}
	percent := map[string]int{
		"security_score_threshold":  c.SecurityScoreThreshold,
		"relevance_score_threshold": c.RelevanceScoreThreshold,
	}
	for name, v := range percent {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s must be in [0,100], got %d", ErrInvalidValue, name, v)
		}
	}
	return nil
}

// Clone returns a copy safe to mutate.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Intervene reports whether the guard mode permits cancelling tool calls.
func (c *Config) Intervene() bool {
	return c.GuardMode.Intervene()
}

// Map returns the config as a plain key-value map for API responses and
// persistence.
func (c *Config) Map() map[string]any {
	return map[string]any{
		"guard_mode":                string(c.GuardMode),
		"max_steps":                 c.MaxSteps,
		"enable_ai_eval":            c.EnableAIEval,
		"enable_shadow_browser":     c.EnableShadowBrowser,
		"loop_window":               c.LoopWindow,
		"loop_threshold":            c.LoopThreshold,
		"max_same_tool":             c.MaxSameTool,
		"security_score_threshold":  c.SecurityScoreThreshold,
		"relevance_score_threshold": c.RelevanceScoreThreshold,
		"auto_intervene_on_loop":    c.AutoInterveneOnLoop,
		"log_retention_days":        c.LogRetentionDays,
	}
}

// ApplyUpdates applies recognized keys from an API update payload in place.
// Unknown keys are ignored. Returns the sorted list of keys that were
// applied; ErrNoValidKeys when none were recognized.
func (c *Config) ApplyUpdates(updates map[string]any) ([]string, error) {
	applied := make([]string, 0, len(updates))
	for key, value := range updates {
		ok := true
		switch key {
		case "guard_mode":
			s, isStr := value.(string)
			if !isStr {
				return nil, fmt.Errorf("%w: guard_mode must be a string", ErrInvalidValue)
			}
			c.GuardMode = models.GuardMode(s)
		case "max_steps":
			ok = setInt(&c.MaxSteps, value)
		case "enable_ai_eval":
			ok = setBool(&c.EnableAIEval, value)
		case "enable_shadow_browser":
			ok = setBool(&c.EnableShadowBrowser, value)
		case "loop_window":
			ok = setInt(&c.LoopWindow, value)
		case "loop_threshold":
			ok = setInt(&c.LoopThreshold, value)
		case "max_same_tool":
			ok = setInt(&c.MaxSameTool, value)
		case "security_score_threshold":
			ok = setInt(&c.SecurityScoreThreshold, value)
		case "relevance_score_threshold":
			ok = setInt(&c.RelevanceScoreThreshold, value)
		case "auto_intervene_on_loop":
			ok = setBool(&c.AutoInterveneOnLoop, value)
		case "log_retention_days":
			ok = setInt(&c.LogRetentionDays, value)
		default:
			continue
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, key)
		}
		applied = append(applied, key)
	}
	if len(applied) == 0 {
		return nil, ErrNoValidKeys
	}
	sort.Strings(applied)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return applied, nil
}

// setInt assigns a decoded JSON number to an int field.
func setInt(dst *int, value any) bool {
	switch v := value.(type) {
	case float64:
		*dst = int(v)
	case int:
		*dst = v
	default:
		return false
	}
	return true
}

// setBool assigns a decoded JSON bool to a bool field.
func setBool(dst *bool, value any) bool {
	b, ok := value.(bool)
	if !ok {
		return false
	}
	*dst = b
	return true
}

package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"

	"github.com/arguslabs/argus/pkg/dashboard"
	"github.com/arguslabs/argus/pkg/eval"
	"github.com/arguslabs/argus/pkg/masking"
	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/store"
)

// DefaultLogDir is where the hook persists session reports when no store
// is supplied. Matches the server's default log root so a hook and a local
// server share one workspace out of the box.
const DefaultLogDir = "argus_logs"

// Options configures a monitoring Hook. The zero value is usable; New
// fills unset fields from DefaultOptions.
type Options struct {
	// Task describes what the monitored agent should accomplish. Accepts a
	// plain string or a *models.TaskDefinition. When nil, the task is
	// auto-detected from the first user message of each invocation.
	Task any

	// SessionID pins the session identity across runs. When empty, an ID is
	// derived from AgentName and SwarmID, falling back to a random one.
	SessionID string

	// AgentName is the display name used for dashboard registration and
	// session ID derivation.
	AgentName string

	// Model records which LLM backs the monitored agent. A model name
	// reported by the framework at session start takes precedence.
	Model string

	// SwarmID groups the sessions of one multi-agent run. SwarmOrder is the
	// agent's position in the swarm; HandoffInput is what the previous swarm
	// member passed in.
	SwarmID      string
	SwarmOrder   int
	HandoffInput string

	// Mode selects monitor (observe only) or intervene (cancel tool calls
	// on loops and step-budget overruns).
	Mode models.GuardMode

	// MaxSteps is the hard step budget. In intervene mode, calls beyond it
	// are cancelled.
	MaxSteps int

	// EnableAIEval is a *bool: nil means "use default" (enabled), explicit
	// false disables the LLM judge.
	EnableAIEval *bool

	// EnableShadowBrowser queues browser-produced steps for shadow
	// verification during finalization. Requires Verifier.
	EnableShadowBrowser bool

	// AutoInterveneOnLoop cancels looping tool calls even in monitor mode.
	AutoInterveneOnLoop bool

	// LoopWindow, LoopThreshold and MaxSameTool tune the deterministic
	// step analyzer.
	LoopWindow    int
	LoopThreshold int
	MaxSameTool   int

	// TruncationLimit caps the stored tool result length. The untruncated
	// result is still handed to the judge.
	TruncationLimit int

	// RelevanceThreshold marks judge-scored steps below it as IRRELEVANT.
	RelevanceThreshold int

	// FinalizeTimeout bounds the synchronous evaluation drain at session end.
	FinalizeTimeout time.Duration

	// OnIssue is called for every detected issue, as it is detected.
	OnIssue func(*models.QualityIssue)

	// Store persists reports, step journals and issues. When nil, New opens
	// a FileStore at DefaultLogDir.
	Store *store.FileStore

	// Dashboard streams the session to an argus server. Nil disables
	// streaming.
	Dashboard *dashboard.Client

	// Evaluator runs judge-backed step and session scoring. Nil disables
	// AI evaluation regardless of EnableAIEval.
	Evaluator *eval.Evaluator

	// Verifier replays browser actions for shadow verification. Nil
	// disables shadow checks regardless of EnableShadowBrowser.
	Verifier eval.ShadowVerifier
}

// BoolPtr returns a pointer to b. Convenience for *bool option fields.
func BoolPtr(b bool) *bool { return &b }

// DefaultOptions returns the built-in hook configuration. EnableAIEval is
// left nil here so an explicit false from the caller survives merging.
func DefaultOptions() *Options {
	return &Options{
		Mode:               models.GuardModeMonitor,
		MaxSteps:           50,
		LoopWindow:         5,
		LoopThreshold:      3,
		MaxSameTool:        10,
		TruncationLimit:    500,
		RelevanceThreshold: 30,
		FinalizeTimeout:    120 * time.Second,
	}
}

// resolveOptions merges user options over the defaults, then fills
// settings the caller left unset from the environment.
func resolveOptions(user *Options) (*Options, error) {
	resolved := DefaultOptions()
	if user != nil {
		if err := mergo.Merge(resolved, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("resolve hook options: %w", err)
		}
	}
	applyEnv(resolved, user)
	if !resolved.Mode.IsValid() {
		return nil, fmt.Errorf("invalid guard mode %q", resolved.Mode)
	}
	return resolved, nil
}

// applyEnv wires the hook from ARGUS_MODE, ARGUS_DASHBOARD_URL and the
// ARGUS_JUDGE_* variables, so an embedded hook can be pointed at a server
// and judge without code changes. Explicit options always win.
func applyEnv(resolved, user *Options) {
	userMode := models.GuardMode("")
	if user != nil {
		userMode = user.Mode
	}
	if userMode == "" {
		if mode := os.Getenv("ARGUS_MODE"); mode != "" {
			resolved.Mode = models.GuardMode(mode)
		}
	}
	if resolved.Dashboard == nil {
		if url := os.Getenv("ARGUS_DASHBOARD_URL"); url != "" {
			resolved.Dashboard = dashboard.New(url, os.Getenv("ARGUS_API_KEY"))
		}
	}
	if resolved.Evaluator == nil && resolved.aiEval() {
		if cfg := eval.JudgeConfigFromEnv(); cfg != nil {
			judge, err := eval.NewOpenAIJudge(cfg)
			if err != nil {
				slog.Warn("Judge environment configuration unusable", "error", err)
				return
			}
			resolved.Evaluator = eval.NewEvaluator(judge)
		}
	}
}

// aiEval reports whether judge-backed evaluation is switched on.
func (o *Options) aiEval() bool {
	return o.EnableAIEval == nil || *o.EnableAIEval
}

// resolveTask coerces the loosely typed Task option. Strings become a
// TaskDefinition carrying the hook's step budget.
func (o *Options) resolveTask() *models.TaskDefinition {
	switch t := o.Task.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		task := models.NewTaskDefinition(t)
		task.MaxSteps = o.MaxSteps
		return task
	case *models.TaskDefinition:
		return t
	case models.TaskDefinition:
		return &t
	default:
		task := models.NewTaskDefinition(models.TaskString(t))
		task.MaxSteps = o.MaxSteps
		return task
	}
}

// maskingService is shared by all hooks; patterns are static.
var maskingService = masking.NewService()

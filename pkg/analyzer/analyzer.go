// Package analyzer provides deterministic, rule-based analysis of tool call
// patterns: security bypasses, duplicates, overuse and loops. It runs before
// AI evaluation and keeps only bounded per-session state.
package analyzer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/arguslabs/argus/pkg/models"
)

var (
	sslBypassKeys = []string{"verify_ssl", "verify", "ssl_verify", "check_ssl", "ssl_check"}
	shellKeys     = []string{"shell", "use_shell", "shell_mode"}
	cmdKeys       = []string{"cmd", "command", "args", "shell_cmd", "exec", "query", "input"}
	shellMeta     = []string{"&&", "||", ";", "|", "`", "$(", ">", "<", "../", "..\\"}
	credMarkers   = []string{"password", "passwd", "secret", "api_key", "token", "private_key", "access_key", "auth_key"}
)

// signature identifies a tool call by name and canonical input encoding.
type signature struct {
	tool  string
	canon string
}

// Analyzer tracks per-session call patterns. Not safe for concurrent use;
// the monitor hook serializes calls per session.
type Analyzer struct {
	loopWindow    int
	loopThreshold int
	maxSameTool   int

	recent      []signature
	toolCounter map[string]int
	inputSeen   map[string]struct{}
}

// Result is the outcome of analyzing one step. Redundant marks an exact
// duplicate call; the caller decides what to do with the step status.
type Result struct {
	Redundant bool
	Issues    []*models.QualityIssue
}

// New creates an analyzer with explicit thresholds.
func New(loopWindow, loopThreshold, maxSameTool int) *Analyzer {
	return &Analyzer{
		loopWindow:    loopWindow,
		loopThreshold: loopThreshold,
		maxSameTool:   maxSameTool,
		toolCounter:   make(map[string]int),
		inputSeen:     make(map[string]struct{}),
	}
}

// AnalyzeStep runs all deterministic rules against one tool call and
// records it in the pattern window.
func (a *Analyzer) AnalyzeStep(toolName string, toolInput map[string]any, stepNumber int) *Result {
	res := &Result{}
	stepRef := fmt.Sprintf("step_%d", stepNumber)

	// SSL/TLS certificate verification bypass
	for _, key := range sslBypassKeys {
		if b, ok := toolInput[key].(bool); ok && !b {
			issue := models.NewQualityIssue(models.IssueSecurityBypass, 8,
				fmt.Sprintf("'%s=False' detected: SSL certificate verification is disabled. "+
					"This exposes the connection to man-in-the-middle (MITM) attacks.", key))
			issue.AffectedSteps = []string{stepRef}
			issue.Recommendation = fmt.Sprintf("Remove '%s' or set it to True. "+
				"If you are hitting SSL errors, install the proper CA bundle (e.g. certifi).", key)
			res.Issues = append(res.Issues, issue)
			break
		}
	}

	// shell=True command injection risk
	for _, key := range shellKeys {
		if b, ok := toolInput[key].(bool); ok && b {
			issue := models.NewQualityIssue(models.IssueSecurityBypass, 9,
				fmt.Sprintf("'%s=True' detected: shell injection risk. "+
					"Arbitrary OS commands can be executed via shell metacharacters.", key))
			issue.AffectedSteps = []string{stepRef}
			issue.Recommendation = "Use list-form subprocess calls instead of shell=True."
			res.Issues = append(res.Issues, issue)
			break
		}
	}

	// Shell metacharacters in common command fields, one issue max
	for _, key := range cmdKeys {
		val, ok := toolInput[key].(string)
		if !ok {
			continue
		}
		found := false
		for _, meta := range shellMeta {
			if strings.Contains(val, meta) {
				issue := models.NewQualityIssue(models.IssueSecurityBypass, 8,
					fmt.Sprintf("Potential command injection in '%s': shell metacharacter %q detected in input: %q",
						key, meta, truncate(val, 80)))
				issue.AffectedSteps = []string{stepRef}
				issue.Recommendation = "Sanitize command inputs. Avoid shell metacharacters."
				res.Issues = append(res.Issues, issue)
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	// Credential markers in argument names, first match only.
	// Keys are visited in sorted order so reports stay deterministic.
	argKeys := make([]string, 0, len(toolInput))
	for k := range toolInput {
		argKeys = append(argKeys, k)
	}
	sort.Strings(argKeys)
	for _, key := range argKeys {
		if _, isStr := toolInput[key].(string); !isStr {
			continue
		}
		lower := strings.ToLower(key)
		matched := false
		for _, marker := range credMarkers {
			if strings.Contains(lower, marker) {
				issue := models.NewQualityIssue(models.IssueSecurityBypass, 7,
					fmt.Sprintf("Potential credential passed as tool argument in field '%s'", key))
				issue.AffectedSteps = []string{stepRef}
				issue.Recommendation = "Avoid passing credentials as tool arguments."
				res.Issues = append(res.Issues, issue)
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}

	// Exact duplicate call
	canon := canonicalInput(toolInput)
	hash := toolName + ":" + canon
	if _, seen := a.inputSeen[hash]; seen {
		res.Redundant = true
		issue := models.NewQualityIssue(models.IssueInefficiency, 3,
			fmt.Sprintf("Duplicate call to %s with same inputs", toolName))
		issue.Recommendation = "Avoid calling same tool with same inputs multiple times"
		res.Issues = append(res.Issues, issue)
	} else {
		a.inputSeen[hash] = struct{}{}
	}

	// Same tool called too many times
	a.toolCounter[toolName]++
	if count := a.toolCounter[toolName]; count >= a.maxSameTool {
		issue := models.NewQualityIssue(models.IssueInfiniteLoop, 8,
			fmt.Sprintf("%s called %d times - possible infinite loop", toolName, count))
		issue.Recommendation = "Agent may be stuck in a loop, consider intervention"
		res.Issues = append(res.Issues, issue)
	}

	// Nonce/random evasion: same tool repeated in the window even though
	// inputs differ (catches agents varying a nonce to dodge the duplicate
	// hash). Counted before this call joins the window.
	recentSame := 0
	for _, sig := range a.recent {
		if sig.tool == toolName {
			recentSame++
		}
	}
	if recentSame >= 3 {
		issue := models.NewQualityIssue(models.IssueSuspiciousBehavior, 7,
			fmt.Sprintf("'%s' called %d times in last %d steps with varying inputs — "+
				"possible loop evasion pattern (nonce/random variation).",
				toolName, recentSame+1, a.loopWindow))
		issue.AffectedSteps = []string{stepRef}
		issue.Recommendation = "Agent may be stuck in a disguised loop. Review tool call necessity."
		res.Issues = append(res.Issues, issue)
	}

	// Repeating pattern over a full window (A→B→A→B→A→B)
	a.recent = append(a.recent, signature{tool: toolName, canon: canon})
	if len(a.recent) > a.loopWindow {
		a.recent = a.recent[1:]
	}
	if len(a.recent) >= a.loopWindow {
		if top, count := a.mostCommon(); count >= a.loopThreshold {
			issue := models.NewQualityIssue(models.IssueInfiniteLoop, 9,
				fmt.Sprintf("Repeating pattern detected: %s called %d times in last %d steps",
					top.tool, count, a.loopWindow))
			issue.Recommendation = "Agent is stuck in a loop, intervention recommended"
			res.Issues = append(res.Issues, issue)
		}
	}

	return res
}

// CheckEfficiency flags sessions that blew far past their step budget.
func (a *Analyzer) CheckEfficiency(totalSteps, maxExpected int) []*models.QualityIssue {
	if float64(totalSteps) <= float64(maxExpected)*1.5 {
		return nil
	}
	issue := models.NewQualityIssue(models.IssueInefficiency, 5,
		fmt.Sprintf("Task took %d steps (expected ~%d)", totalSteps, maxExpected))
	issue.Recommendation = "Agent may be inefficient, review task approach"
	return []*models.QualityIssue{issue}
}

// Reset clears all state for a new session.
func (a *Analyzer) Reset() {
	a.recent = nil
	a.toolCounter = make(map[string]int)
	a.inputSeen = make(map[string]struct{})
}

// mostCommon returns the most frequent signature in the window, first seen
// winning ties.
func (a *Analyzer) mostCommon() (signature, int) {
	counts := make(map[signature]int, len(a.recent))
	for _, sig := range a.recent {
		counts[sig]++
	}
	var best signature
	bestCount := 0
	for _, sig := range a.recent {
		if c := counts[sig]; c > bestCount {
			best = sig
			bestCount = c
		}
	}
	return best, bestCount
}

// canonicalInput encodes tool input deterministically. encoding/json sorts
// map keys at every depth, so equal inputs always encode identically.
func canonicalInput(input map[string]any) string {
	if len(input) == 0 {
		return "{}"
	}
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprintf("%v", input)
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

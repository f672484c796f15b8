package models

import (
	"fmt"
	"strings"
	"time"
)

// AgentDiscovery holds what static analysis learned about a registered agent.
// Hook agents self-register with an empty descriptor.
type AgentDiscovery struct {
	AgentType       string   `json:"agent_type"`
	Tools           []string `json:"tools"`
	Functions       []string `json:"functions"`
	Imports         []string `json:"imports"`
	Dependencies    []string `json:"dependencies"`
	PotentialIssues []string `json:"potential_issues"`
	EntryPoints     []string `json:"entry_points"`
}

// AgentRegistryEntry is one row of the persistent agent registry
type AgentRegistryEntry struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Source          AgentSource     `json:"source"`
	SourceFile      string          `json:"source_file,omitempty"`
	TaskDescription string          `json:"task_description,omitempty"`
	AddedAt         string          `json:"added_at"`
	Status          string          `json:"status"`
	LastRun         string          `json:"last_run,omitempty"`
	Discovery       *AgentDiscovery `json:"discovery,omitempty"`
}

// NewHookAgentEntry creates a registry entry for a self-registering hook agent.
func NewHookAgentEntry(name, sourceFile, taskDescription string) *AgentRegistryEntry {
	if sourceFile == "" {
		sourceFile = "unknown"
	}
	if taskDescription == "" {
		taskDescription = "Live monitoring: " + name
	}
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	if len(slug) > 20 {
		slug = slug[:20]
	}
	return &AgentRegistryEntry{
		ID:              fmt.Sprintf("hook-%s-%s", time.Now().Format("20060102150405"), slug),
		Name:            name,
		Source:          AgentSourceHook,
		SourceFile:      sourceFile,
		TaskDescription: taskDescription,
		AddedAt:         NowISO(),
		Status:          "analyzed",
		Discovery: &AgentDiscovery{
			AgentType:       "Hook Agent",
			Tools:           []string{},
			Functions:       []string{},
			Imports:         []string{},
			Dependencies:    []string{},
			PotentialIssues: []string{},
			EntryPoints:     []string{},
		},
	}
}

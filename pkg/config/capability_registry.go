package config

import "sort"

// CapabilityEntry describes one agent template's dispatchable capabilities,
// flattened out of AgentTemplateRegistry for fast scheduler lookups.
type CapabilityEntry struct {
	TemplateName        string
	Description         string
	Capabilities        []string
	SandboxProvider     string
	CodingAgentProvider string
}

// CapabilityRegistry indexes agent templates by the capabilities they claim,
// so the Task Scheduler (C4) can find every template able to run a task
// without scanning the full template map per task.
type CapabilityRegistry struct {
	entries []CapabilityEntry
}

// BuildCapabilityRegistry flattens an AgentTemplateRegistry into a
// capability-searchable registry.
func BuildCapabilityRegistry(templates map[string]*AgentTemplateConfig) *CapabilityRegistry {
	var entries []CapabilityEntry
	for name, tmpl := range templates {
		if tmpl == nil {
			continue
		}
		caps := make([]string, len(tmpl.Capabilities))
		copy(caps, tmpl.Capabilities)
		sort.Strings(caps)
		entries = append(entries, CapabilityEntry{
			TemplateName:        name,
			Description:         tmpl.Description,
			Capabilities:        caps,
			SandboxProvider:     tmpl.SandboxProvider,
			CodingAgentProvider: tmpl.CodingAgentProvider,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TemplateName < entries[j].TemplateName
	})
	return &CapabilityRegistry{entries: entries}
}

// Entries returns a deep copy of all entries in the registry.
func (r *CapabilityRegistry) Entries() []CapabilityEntry {
	out := make([]CapabilityEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.clone()
	}
	return out
}

func (e CapabilityEntry) clone() CapabilityEntry {
	c := e
	if len(e.Capabilities) > 0 {
		c.Capabilities = make([]string, len(e.Capabilities))
		copy(c.Capabilities, e.Capabilities)
	}
	return c
}

// MatchAll returns every template whose claimed capabilities are a superset
// of required. An empty required list matches every template.
func (r *CapabilityRegistry) MatchAll(required []string) []CapabilityEntry {
	var matches []CapabilityEntry
	for _, e := range r.entries {
		if hasAllCapabilities(e.Capabilities, required) {
			matches = append(matches, e.clone())
		}
	}
	return matches
}

func hasAllCapabilities(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// Get returns the entry for the given template name, or false if not found.
func (r *CapabilityRegistry) Get(templateName string) (CapabilityEntry, bool) {
	for _, e := range r.entries {
		if e.TemplateName == templateName {
			return e.clone(), true
		}
	}
	return CapabilityEntry{}, false
}

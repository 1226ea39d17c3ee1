package config

// mergeAgentTemplates merges built-in and user-defined agent templates.
// User-defined templates override built-ins with the same name.
func mergeAgentTemplates(builtin map[string]AgentTemplateConfig, user map[string]AgentTemplateConfig) map[string]*AgentTemplateConfig {
	result := make(map[string]*AgentTemplateConfig)
	for name, tmpl := range builtin {
		tmplCopy := tmpl
		result[name] = &tmplCopy
	}
	for name, tmpl := range user {
		tmplCopy := tmpl
		result[name] = &tmplCopy
	}
	return result
}

// mergeSandboxProviders merges built-in and user-defined sandbox providers.
// User-defined providers override built-ins with the same ID.
func mergeSandboxProviders(builtin map[string]SandboxProviderConfig, user map[string]SandboxProviderConfig) map[string]*SandboxProviderConfig {
	result := make(map[string]*SandboxProviderConfig)
	for id, p := range builtin {
		pCopy := p
		result[id] = &pCopy
	}
	for id, p := range user {
		pCopy := p
		result[id] = &pCopy
	}
	return result
}

// mergeCodingAgentProviders merges built-in and user-defined coding-agent
// providers. User-defined providers override built-ins with the same name.
func mergeCodingAgentProviders(builtin map[string]CodingAgentProviderConfig, user map[string]CodingAgentProviderConfig) map[string]*CodingAgentProviderConfig {
	result := make(map[string]*CodingAgentProviderConfig)
	for name, p := range builtin {
		pCopy := p
		result[name] = &pCopy
	}
	for name, p := range user {
		pCopy := p
		result[name] = &pCopy
	}
	return result
}

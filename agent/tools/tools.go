package tools

import "github.com/talklens/talklens/agent"

// All builds the full tool set bound to one runtime.
func All(rt *Runtime) []agent.ToolWithSchema {
	return []agent.ToolWithSchema{
		NewSearchByFiltersTool(rt),
		NewSearchSemanticTool(rt),
		NewVideoSearchTool(rt),
		NewFindSimilarTool(rt),
		NewTalkDetailsTool(rt),
		NewSpeakerActivityTool(rt),
		NewTopicsTool(rt),
		NewUniqueValuesTool(rt),
	}
}

// RegisterAll registers every tool, optionally wrapped with the result
// cache, into the registry.
func RegisterAll(reg *agent.Registry, rt *Runtime, cache *ResultCache) {
	for _, tool := range All(rt) {
		reg.MustRegister(Cached(tool, cache))
	}
}

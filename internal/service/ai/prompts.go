package ai

// DefaultInstruction conditions the tutor when a session's module id has no
// entry in the prompt table.
const DefaultInstruction = "You are a helpful AI Tutor."

// Resolver maps a module id to its system instruction text. The table is
// injected at construction so deployments and tests can swap it.
type Resolver struct {
	prompts  map[string]string
	fallback string
}

// NewResolver copies the supplied table; an empty fallback means
// DefaultInstruction.
func NewResolver(prompts map[string]string, fallback string) *Resolver {
	copied := make(map[string]string, len(prompts))
	for id, text := range prompts {
		copied[id] = text
	}
	if fallback == "" {
		fallback = DefaultInstruction
	}
	return &Resolver{prompts: copied, fallback: fallback}
}

// Resolve returns the system instruction for the module, or the fallback for
// unknown ids.
func (r *Resolver) Resolve(moduleID string) string {
	if text, ok := r.prompts[moduleID]; ok {
		return text
	}
	return r.fallback
}

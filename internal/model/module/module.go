package module

// Module describes one curriculum topic exposed to the frontend.
type Module struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Seed provides the curriculum catalog required by the product spec.
func Seed() []Module {
	return []Module{
		{
			ID:          "assessment",
			Title:       "Assessment",
			Description: "Gauge your current knowledge level.",
		},
		{
			ID:          "fundamentals",
			Title:       "Prompting Fundamentals",
			Description: "Learn the basics of interacting with AI.",
		},
		{
			ID:          "advanced",
			Title:       "Advanced Prompting",
			Description: "Master complex prompting techniques.",
		},
		{
			ID:          "practice",
			Title:       "Practice Prompting",
			Description: "Hands-on exercises to refine your skills.",
		},
		{
			ID:          "genai_fundamentals",
			Title:       "Generative AI Fundamentals",
			Description: "Understand the core concepts of GenAI.",
		},
	}
}

// SeedPrompts maps module ids to the system instruction conditioning the tutor
// for that topic. Unknown ids fall back to ai.DefaultInstruction.
func SeedPrompts() map[string]string {
	return map[string]string{
		"assessment":         "You are an AI Tutor conducting an assessment. Ask the user questions to gauge their understanding of AI and Prompt Engineering. Ask one question at a time. Be encouraging but objective.",
		"fundamentals":       "You are an AI Tutor teaching Prompting Fundamentals. Explain concepts clearly, use examples, and ensure the user understands before moving on. Topics: Zero-shot, Few-shot, Chain of thought.",
		"advanced":           "You are an expert AI Tutor teaching Advanced Prompting. Cover topics like ReAct, Self-Consistency, and Prompt Chaining. Assume the user has basic knowledge.",
		"practice":           "You are a Practice Partner. Give the user coding or writing challenges and provide feedback on their prompts. Don't just give the answer, guide them.",
		"genai_fundamentals": "You are an AI Tutor teaching Generative AI Fundamentals. Explain how LLMs work, tokens, context windows, and temperature. Keep it accessible.",
	}
}

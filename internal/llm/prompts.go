package llm

const (
	// ChatSystemPrompt frames every chat session.
	ChatSystemPrompt = "You are a careful medical triage assistant. Ask focused questions, " +
		"explain possible conditions in plain language and recommend seeing a doctor when symptoms are serious."

	// ImageSymptomsPrompt asks the vision model for an objective description.
	ImageSymptomsPrompt = `Analyze this medical image thoroughly and provide:
1. Detailed description of all visible symptoms
2. Characteristics (color, texture, pattern, location)

Be objective and factual. Focus only on what is visible in the image. (max limit 150 words)`

	// ImageConditionsPrompt asks the vision model for candidate diseases only.
	ImageConditionsPrompt = `Based on the visible symptoms in this medical image, suggest 3-5 possible diseases that could cause these symptoms.
Reply with disease names only, one per line, without any detail or other message. For example:
1. Acne vulgaris
2. Rosacea
3. Perioral dermatitis`
)

package core

// prompts.go defines the prompts used by the turn service and the symptom
// extractor.  Keeping these prompts in a separate file makes them easy to
// tweak without touching the rest of the code.

const (
	// FirstTurnImagePrompt opens a consultation when an image analysis is
	// available.  Arguments: image description, patient text.
	FirstTurnImagePrompt = `Medical Consultation:
Patient uploaded a medical image. Image analysis shows: %s

Patient's initial query: %s

Please provide:
1. Possible conditions (be concise)
2. Key questions to help diagnose (around 2-4)`

	// FirstTurnPrompt opens a consultation from text alone.  Argument:
	// patient text.
	FirstTurnPrompt = `Medical Consultation:
Patient's initial query: %s

Please provide:
1. Possible conditions based on description
2. Key questions to help diagnose (around 2-4)`

	// FollowUpPrompt answers a later question using the stored diagnosis.
	// Arguments: previous diagnosis, patient question.
	FollowUpPrompt = `Follow-up Question Context:
Previous diagnosis consideration: %s
Current patient question: %s

Please provide a concise, direct answer to the patient's specific question without repeating previous information.
You may give guidance on the condition, medicine, diet and similar topics.`

	// CombinedSymptomText merges the image narrative with the patient text
	// before extraction.  Arguments: image description, patient text.
	CombinedSymptomText = "VISUAL SYMPTOMS: %s\nPATIENT DESCRIPTION: %s"

	// ExtractionSystemPrompt is the system role of the extraction call.
	ExtractionSystemPrompt = "You are a medical symptom analyzer. Return only JSON."

	// ExtractionPrompt asks for present and absent symptoms.  Arguments:
	// description, JSON encoded vocabulary.
	ExtractionPrompt = `Analyze this medical description and return a JSON response with present and absent symptoms:

%s

Available symptoms (must use exact names):
%s

Return ONLY JSON format with two arrays:
{
  "present": ["symptom1", "symptom2"],
  "absent": ["symptom3", "symptom4"]
}`

	// ErrorReplyPrefix starts the assistant message recorded for a failed
	// turn.
	ErrorReplyPrefix = "An error occurred: "
)

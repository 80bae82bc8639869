package llm

import "context"

// Message is a minimal chat message used by the adapters.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer is a stateless text-completion service.  CompleteJSON asks the
// model for a single JSON object and returns the raw text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// ChatSession is a long-lived conversation with a chat model.  The session
// carries every prior exchange so the model sees the whole consultation.
type ChatSession interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// ChatFactory opens new chat sessions.
type ChatFactory interface {
	NewChat() ChatSession
}

// ImageAnalyzer describes a medical image.  It returns a free text symptom
// description and a comma separated list of candidate diseases.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte) (description string, candidates string, err error)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements ChatFactory and ImageAnalyzer on Google's Gemini API.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelID: modelID}, nil
}

// NewChat starts a Gemini chat session with an empty history.
func (c *GeminiClient) NewChat() ChatSession {
	model := c.client.GenerativeModel(c.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(ChatSystemPrompt))
	return &geminiChat{cs: model.StartChat()}
}

// AnalyzeImage asks Gemini for a description of the visible symptoms and for
// a list of candidate diseases.  Line breaks in the candidate answer are
// joined with commas.
func (c *GeminiClient) AnalyzeImage(ctx context.Context, image []byte) (string, string, error) {
	model := c.client.GenerativeModel(c.modelID)
	blob := genai.ImageData(imageFormat(image), image)

	description, err := generateText(ctx, model, genai.Text(ImageSymptomsPrompt), blob)
	if err != nil {
		return "", "", err
	}
	conditions, err := generateText(ctx, model, genai.Text(ImageConditionsPrompt), blob)
	if err != nil {
		return "", "", err
	}
	return description, strings.ReplaceAll(conditions, "\n", ", "), nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

type geminiChat struct {
	mu sync.Mutex
	cs *genai.ChatSession
}

func (s *geminiChat) Send(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("llm: gemini chat failed: %w", err)
	}
	return responseText(resp)
}

func generateText(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("llm: gemini generation failed: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("llm: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("llm: gemini returned empty content")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// imageFormat maps sniffed content to the short format genai expects.
func imageFormat(image []byte) string {
	switch http.DetectContentType(image) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpeg"
	}
}

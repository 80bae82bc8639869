package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls an OpenAI-compatible chat completion API.  Setting a
// base URL lets the same adapter talk to Groq or a local gateway.
type OpenAIClient struct {
	client    *openai.Client
	textModel string
	chatModel string
}

// NewOpenAIClient constructs an OpenAI-backed client.  Empty model names fall
// back to sensible defaults.
func NewOpenAIClient(apiKey, baseURL, textModel, chatModel string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if textModel == "" {
		textModel = "gpt-4o-mini"
	}
	if chatModel == "" {
		chatModel = textModel
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		textModel: textModel,
		chatModel: chatModel,
	}
}

// Chat sends the message history to the chat completion API and returns
// the assistant's response.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    oaMsgs,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete runs a single system + user prompt through the text model.
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	return c.complete(ctx, system, prompt, nil)
}

// CompleteJSON is Complete with the JSON object response format enforced.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	return c.complete(ctx, system, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *OpenAIClient) complete(ctx context.Context, system, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.textModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0.2,
		MaxTokens:      1000,
		ResponseFormat: format,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnalyzeImage sends the image as a data URL to the chat model twice: once
// for a symptom description and once for candidate diseases.
func (c *OpenAIClient) AnalyzeImage(ctx context.Context, image []byte) (string, string, error) {
	url := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)

	description, err := c.vision(ctx, ImageSymptomsPrompt, url)
	if err != nil {
		return "", "", err
	}
	conditions, err := c.vision(ctx, ImageConditionsPrompt, url)
	if err != nil {
		return "", "", err
	}
	return description, strings.ReplaceAll(strings.TrimSpace(conditions), "\n", ", "), nil
}

func (c *OpenAIClient) vision(ctx context.Context, prompt, imageURL string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    imageURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		}},
		MaxTokens: 1000,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// NewChat opens a chat session that keeps its own message history.
func (c *OpenAIClient) NewChat() ChatSession {
	return &openAIChat{
		client:  c,
		history: []Message{{Role: RoleSystem, Content: ChatSystemPrompt}},
	}
}

type openAIChat struct {
	client  *OpenAIClient
	mu      sync.Mutex
	history []Message
}

func (s *openAIChat) Send(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(append([]Message(nil), s.history...), Message{Role: RoleUser, Content: prompt})
	reply, err := s.client.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	s.history = append(msgs, Message{Role: RoleAssistant, Content: reply})
	return reply, nil
}

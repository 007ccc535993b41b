package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"codecollab-be/internal/dto"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

type IAiService interface {
	Complete(ctx context.Context, req dto.CompletionRequest) (*dto.CompletionResponse, error)
}

// aiService is a stateless pass-through to the OpenRouter completion API.
// It holds no session state and never touches the room registry.
type aiService struct {
	apiKey string
	client *http.Client
}

func NewAiService(apiKey string) IAiService {
	return &aiService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature float64                 `json:"temperature"`
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *aiService) Complete(ctx context.Context, req dto.CompletionRequest) (*dto.CompletionResponse, error) {
	systemPrompt := "You are a helpful code completion assistant. Complete the following code."
	if req.Type == "debug" {
		systemPrompt = "You are a helpful code debugger. Explain and fix bugs in the following code."
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: "openai/gpt-3.5-turbo",
		Messages: []chatCompletionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ai service returned status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	answer := ""
	if len(result.Choices) > 0 {
		answer = result.Choices[0].Message.Content
	}
	return &dto.CompletionResponse{Result: answer}, nil
}

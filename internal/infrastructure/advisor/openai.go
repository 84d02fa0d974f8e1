package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// OpenAIAdvisor asks a chat-completion model for a trading decision.
// The market snapshot is serialized into the user message and the
// model is constrained to a JSON object response.
type OpenAIAdvisor struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	client       *http.Client
	log          *zap.Logger
}

func NewOpenAIAdvisor(apiKey, baseURL, model, systemPrompt string, log *zap.Logger) *OpenAIAdvisor {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &OpenAIAdvisor{
		apiKey:       apiKey,
		baseURL:      baseURL,
		model:        model,
		systemPrompt: systemPrompt,
		client:       &http.Client{Timeout: 120 * time.Second},
		log:          log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIAdvisor) Recommend(ctx context.Context, snapshot *domain.MarketSnapshot) (*domain.Advice, error) {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	reqBody := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: o.systemPrompt},
			{Role: "user", Content: string(snapshotJSON)},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openai API error: %s", string(body))
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAdvice, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrMalformedAdvice)
	}

	content := stripCodeFence(completion.Choices[0].Message.Content)
	o.log.Debug("advisor response", zap.String("content", content))

	var advice domain.Advice
	if err := json.Unmarshal([]byte(content), &advice); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAdvice, err)
	}
	if err := advice.Validate(); err != nil {
		return nil, err
	}
	return &advice, nil
}

// stripCodeFence removes markdown fences some models wrap around JSON
// despite instructions not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if _, rest, ok := strings.Cut(s, "\n"); ok {
		s = rest
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

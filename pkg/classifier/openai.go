package classifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultOpenAIURL points at a local LM Studio server.
const DefaultOpenAIURL = "http://localhost:1234"

// OpenAI classifies changes with any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

// NewOpenAI creates an OpenAI-compatible classifier. An empty model lets the
// server pick whatever model is loaded.
func NewOpenAI(client *http.Client, baseURL, model, apiKey string) *OpenAI {
	if client == nil {
		client = &http.Client{}
	}

	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}

	return &OpenAI{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Classify(ctx context.Context, req Request) (Verdict, error) {
	payload := map[string]any{
		"messages": []chatMessage{
			{Role: "system", Content: SystemPrompt(req.TargetType)},
			{Role: "user", Content: UserPrompt(req)},
		},
		"temperature": 0.1,
		"stream":      false,
	}

	if o.model != "" {
		payload["model"] = o.model
	}

	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	var resp chatResponse
	if err := postJSON(ctx, o.client, o.baseURL+"/v1/chat/completions", headers, payload, &resp); err != nil {
		return Verdict{}, err
	}

	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return ParseVerdict(resp.Choices[0].Message.Content)
}

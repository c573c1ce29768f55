package classifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Gemini classifies changes with the Google Generative Language API.
type Gemini struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

// NewGemini creates a Gemini classifier. Empty baseURL and model use the defaults.
func NewGemini(client *http.Client, baseURL, model, apiKey string) *Gemini {
	if client == nil {
		client = &http.Client{}
	}

	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}

	if model == "" {
		model = DefaultGeminiModel
	}

	return &Gemini{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Classify(ctx context.Context, req Request) (Verdict, error) {
	payload := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: SystemPrompt(req.TargetType)}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: UserPrompt(req)}}},
		},
		GenerationConfig: map[string]any{
			"temperature":      0.1,
			"responseMimeType": "application/json",
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)

	var resp geminiResponse
	if err := postJSON(ctx, g.client, url, map[string]string{"x-goog-api-key": g.apiKey}, payload, &resp); err != nil {
		return Verdict{}, err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Verdict{}, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return ParseVerdict(text.String())
}

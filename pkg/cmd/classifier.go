package cmd

import (
	"fmt"
	"net/http"

	"github.com/dukex/changewatch/pkg/classifier"
)

type ClassifierOptions struct {
	Provider string
	URL      string
	Model    string
	APIKey   string
}

func NewClassifier(client *http.Client, opts ClassifierOptions) (classifier.Classifier, error) {
	switch opts.Provider {
	case "gemini":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("gemini classifier requires an API key")
		}

		return classifier.NewGemini(client, opts.URL, opts.Model, opts.APIKey), nil
	case "openai":
		return classifier.NewOpenAI(client, opts.URL, opts.Model, opts.APIKey), nil
	case "none", "":
		return classifier.Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unsupported classifier %q", opts.Provider)
	}
}

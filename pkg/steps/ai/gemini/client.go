package gemini

import (
	"context"

	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	genai "google.golang.org/genai"
)

// ModelClient is the part of the genai SDK the dispatcher depends on.
// *genai.Models satisfies it.
type ModelClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

var _ ModelClient = (*genai.Models)(nil)

// NewClient creates a Gemini API client from the settings.
func NewClient(ctx context.Context, s *settings.StepSettings) (*genai.Client, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      s.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: s.Client.BaseURL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create gemini client")
	}
	return client, nil
}

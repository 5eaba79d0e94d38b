package gemini

import (
	"fmt"

	"github.com/pkg/errors"
	genai "google.golang.org/genai"
)

// ErrNoCandidates is returned when the provider answered without any candidate,
// which usually means the request was blocked by safety filters.
var ErrNoCandidates = errors.New("the model failed to generate any candidates, this might be due to safety filters")

// ProviderError wraps a transport or API failure. The message of the
// underlying error is kept intact so that it can be classified.
type ProviderError struct {
	Operation  string
	Model      string
	StatusCode int
	Status     string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request to %s failed: %v", e.Operation, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(operation, model string, err error) error {
	ret := &ProviderError{Operation: operation, Model: model, Err: err}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		ret.StatusCode = apiErr.Code
		ret.Status = apiErr.Status
	}
	return ret
}

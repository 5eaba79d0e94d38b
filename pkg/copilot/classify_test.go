package copilot

import (
	"testing"

	"github.com/go-go-golems/shift/pkg/geolocation"
	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected FailureKind
	}{
		{"missing credential", settings.ErrMissingCredential, FailureCredential},
		{"wrapped missing credential", errors.Wrap(settings.ErrMissingCredential, "send"), FailureCredential},
		{"no candidates", gemini.ErrNoCandidates, FailureSafety},
		{"grounding unavailable", geolocation.ErrGroundingUnavailable, FailureLocation},
		{"api key text", errors.New("API key not valid. Please pass a valid API key."), FailureCredential},
		{"api_key text", errors.New("INVALID_ARGUMENT: API_KEY_INVALID"), FailureCredential},
		{"unauthenticated", errors.New("rpc error: Unauthenticated"), FailureCredential},
		{"401", errors.New("Error 401"), FailureCredential},
		{"403", errors.New("Error 403: forbidden"), FailureAccessDenied},
		{"permission", errors.New("caller does not have Permission"), FailureAccessDenied},
		{"404", errors.New("got 404"), FailureModelUnavailable},
		{"not found", errors.New("models/foo is Not Found for API version v1beta"), FailureModelUnavailable},
		{"safety", errors.New("response blocked by SAFETY"), FailureSafety},
		{"blocked", errors.New("prompt was blocked"), FailureSafety},
		{"quota", errors.New("You exceeded your current quota"), FailureQuota},
		{"rate limit", errors.New("rate limit exceeded"), FailureQuota},
		{"rate-limit", errors.New("rate-limit hit"), FailureQuota},
		{"429", errors.New("status 429"), FailureQuota},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), FailureQuota},
		{"location", errors.New("user location is not supported"), FailureLocation},
		{"generic", errors.New("connection reset by peer"), FailureGeneric},
		{"provider status 429", &gemini.ProviderError{Operation: "send_text", Model: "m", StatusCode: 429, Err: errors.New("try later")}, FailureQuota},
		{"provider status 403", &gemini.ProviderError{Operation: "send_text", Model: "m", StatusCode: 403, Err: errors.New("nope")}, FailureAccessDenied},
		{"provider status 500", &gemini.ProviderError{Operation: "send_text", Model: "m", StatusCode: 500, Err: errors.New("internal")}, FailureGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.err))
		})
	}

	assert.Equal(t, FailureKind(""), Classify(nil))
}

func TestFailureReply(t *testing.T) {
	for _, kind := range []FailureKind{
		FailureCredential, FailureAccessDenied, FailureModelUnavailable,
		FailureSafety, FailureQuota, FailureLocation, FailureGeneric,
	} {
		r := FailureReply(kind, errors.New("boom"))
		for _, s := range r.Sections() {
			assert.NotEmpty(t, s.Text, "%s/%s", kind, s.Key)
			assert.NotEqual(t, reply.UnavailablePlaceholder, s.Text)
		}
		assert.NotEmpty(t, r.RawText)
		assert.Empty(t, r.GroundingURLs)
	}

	assert.Equal(t,
		"SYSTEM ERROR: API Key is not configured in the environment. Please add it to your project settings.",
		FailureReply(FailureCredential, settings.ErrMissingCredential).RawText)
	assert.Equal(t,
		"I encountered a cognitive blockage. Verify your connection and grounding parameters.",
		FailureReply("unknown", nil).RawText)
	assert.Contains(t, FailureReply(FailureGeneric, errors.New("dial tcp: timeout")).Missing, "dial tcp: timeout")
}

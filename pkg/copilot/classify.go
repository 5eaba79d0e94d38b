package copilot

import (
	"strings"

	"github.com/go-go-golems/shift/pkg/geolocation"
	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
	"github.com/pkg/errors"
)

type FailureKind string

const (
	FailureCredential       FailureKind = "credential"
	FailureAccessDenied     FailureKind = "access_denied"
	FailureModelUnavailable FailureKind = "model_unavailable"
	FailureSafety           FailureKind = "safety"
	FailureQuota            FailureKind = "quota"
	FailureLocation         FailureKind = "location"
	FailureGeneric          FailureKind = "generic"
)

// substring rules are checked in order, the first match wins
var failureRules = []struct {
	kind       FailureKind
	substrings []string
}{
	{FailureCredential, []string{"api key", "api_key", "unauthenticated", "401"}},
	{FailureAccessDenied, []string{"403", "permission"}},
	{FailureModelUnavailable, []string{"404", "not found"}},
	{FailureSafety, []string{"safety", "blocked", "candidates"}},
	{FailureQuota, []string{"quota", "rate limit", "rate-limit", "429", "resource_exhausted"}},
	{FailureLocation, []string{"location"}},
}

// Classify maps an error to the failure shown to the user. Known sentinel
// errors are recognized first, then the lower-cased message is matched.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, settings.ErrMissingCredential):
		return FailureCredential
	case errors.Is(err, gemini.ErrNoCandidates):
		return FailureSafety
	case errors.Is(err, geolocation.ErrGroundingUnavailable):
		return FailureLocation
	}

	var perr *gemini.ProviderError
	if errors.As(err, &perr) {
		switch perr.StatusCode {
		case 401:
			return FailureCredential
		case 403:
			return FailureAccessDenied
		case 404:
			return FailureModelUnavailable
		case 429:
			return FailureQuota
		}
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range failureRules {
		for _, s := range rule.substrings {
			if strings.Contains(msg, s) {
				return rule.kind
			}
		}
	}
	return FailureGeneric
}

type failureText struct {
	headline     string
	missing      string
	differentWay string
	longTerm     string
	nextStep     string
}

var failureTexts = map[FailureKind]failureText{
	FailureCredential: {
		headline:     "SYSTEM ERROR: API Key is not configured in the environment. Please add it to your project settings.",
		missing:      "No valid API key reached the model provider, so no analysis was performed.",
		differentWay: "This is a configuration problem, not a problem with your question.",
		longTerm:     "Every request will fail the same way until the credential is fixed.",
		nextStep:     "Set API_KEY (or GEMINI_API_KEY) in the environment or in .env, then ask again.",
	},
	FailureAccessDenied: {
		headline:     "ACCESS DENIED: The API key provided does not have permissions for this model or task.",
		missing:      "The API key is valid but is not allowed to use the requested model or tool.",
		differentWay: "The request itself was fine; the project behind the key lacks access.",
		longTerm:     "Grounded and image requests may keep failing while plain text works, or the other way round.",
		nextStep:     "Enable the model for your project or use a key that has access to it.",
	},
	FailureModelUnavailable: {
		headline:     "MODEL UNAVAILABLE: The requested cognitive engine is not available in this region.",
		missing:      "The configured model could not be found for this key or region.",
		differentWay: "A different model name or region may serve the same request.",
		longTerm:     "Preview models are renamed or retired; pinned model names go stale.",
		nextStep:     "Check the configured model names in shift.yaml and try again.",
	},
	FailureSafety: {
		headline:     "SIGNAL BLOCKED: The model declined to produce an answer, most likely because of safety filters.",
		missing:      "The provider returned no candidates for this input.",
		differentWay: "Rephrasing the question in neutral, concrete terms often gets through.",
		longTerm:     "Inputs that trip the filters will keep being rejected regardless of retries.",
		nextStep:     "Rephrase the request and send it again.",
	},
	FailureQuota: {
		headline:     "RATE LIMITED: The provider quota is exhausted for now.",
		missing:      "Too many requests were sent in a short period, or the project quota is used up.",
		differentWay: "Nothing is wrong with your input; the provider is throttling the key.",
		longTerm:     "Sustained usage at this rate needs a higher quota tier.",
		nextStep:     "Wait a minute before sending the next message.",
	},
	FailureLocation: {
		headline:     "LOCATION UNAVAILABLE: Your position could not be determined for maps grounding.",
		missing:      "Maps grounding needs an approximate location and none was available.",
		differentWay: "Naming the city or neighborhood in the question works without location access.",
		longTerm:     "Configure a fixed location to make maps answers consistent.",
		nextStep:     "Add the place to your question or set location.latitude and location.longitude.",
	},
	FailureGeneric: {
		headline:     "I encountered a cognitive blockage. Verify your connection and grounding parameters.",
		missing:      "The request to the model provider failed before an answer arrived.",
		differentWay: "Transient network problems look the same as outages from here.",
		longTerm:     "Repeated failures point to a connectivity or configuration issue.",
		nextStep:     "Check your connection and grounding mode, then send the message again.",
	},
}

// FailureReply renders a failure in the same four-field shape as a normal
// reply. RawText holds the user-facing headline.
func FailureReply(kind FailureKind, err error) reply.StructuredReply {
	t, ok := failureTexts[kind]
	if !ok {
		t = failureTexts[FailureGeneric]
	}
	ret := reply.StructuredReply{
		Missing:      t.missing,
		DifferentWay: t.differentWay,
		LongTerm:     t.longTerm,
		NextStep:     t.nextStep,
		RawText:      t.headline,
	}
	if kind == FailureGeneric && err != nil {
		ret.Missing = t.missing + " (" + err.Error() + ")"
	}
	return ret
}

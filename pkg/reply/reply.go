package reply

import (
	"fmt"
	"strings"
)

// EmptyResponseSentinel is stored as RawText when the model returned no usable text.
const EmptyResponseSentinel = "EMPTY_RESPONSE"

const (
	// IncompletePlaceholder replaces a key missing from an otherwise valid JSON reply.
	IncompletePlaceholder = "Analysis incomplete."
	// UnavailablePlaceholder replaces a section no markdown heading could be found for.
	UnavailablePlaceholder = "Analysis unavailable for this section."
)

// Placeholders used for empty model output.
const (
	EmptyMissing      = "The input provided was insufficient for cognitive analysis."
	EmptyDifferentWay = "Try providing a more specific decision, belief, or pattern to analyze."
	EmptyLongTerm     = "No clear long-term consequences could be derived from the current input."
	EmptyNextStep     = "Provide a coherent statement or question."
)

// GroundingReference is a citation attached to a grounded model response.
type GroundingReference struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// StructuredReply is the fixed four-field record every text reply is rendered as.
// All four narrative fields are always populated.
type StructuredReply struct {
	Missing       string               `json:"missing" yaml:"missing"`
	DifferentWay  string               `json:"differentWay" yaml:"differentWay"`
	LongTerm      string               `json:"longTerm" yaml:"longTerm"`
	NextStep      string               `json:"nextStep" yaml:"nextStep"`
	RawText       string               `json:"rawText" yaml:"rawText"`
	GroundingURLs []GroundingReference `json:"groundingUrls,omitempty" yaml:"groundingUrls,omitempty"`
}

// ChunkSource is the nested web or maps descriptor of a grounding chunk.
type ChunkSource struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// RawChunk is a provider grounding chunk. Chunks without a web or maps
// descriptor carry no citation and are dropped by Normalize.
type RawChunk struct {
	Web  *ChunkSource `json:"web,omitempty"`
	Maps *ChunkSource `json:"maps,omitempty"`
}

// Sections returns the four narrative fields in display order.
func (r StructuredReply) Sections() []Section {
	return []Section{
		{Key: "missing", Title: "What you might be missing", Emoji: "🧠", Text: r.Missing},
		{Key: "differentWay", Title: "A different way to see this", Emoji: "🔍", Text: r.DifferentWay},
		{Key: "longTerm", Title: "Long-term consequence", Emoji: "⏳", Text: r.LongTerm},
		{Key: "nextStep", Title: "Smart next step", Emoji: "✅", Text: r.NextStep},
	}
}

// Section is one narrative field together with its display heading.
type Section struct {
	Key   string
	Title string
	Emoji string
	Text  string
}

// SpeechSummary is the short text read aloud for a reply: the first two
// sections only.
func (r StructuredReply) SpeechSummary() string {
	return fmt.Sprintf("What you might be missing: %s. Alternative view: %s.", r.Missing, r.DifferentWay)
}

// IsEmptyResponse reports whether the reply was built from empty model output.
func (r StructuredReply) IsEmptyResponse() bool {
	return r.RawText == EmptyResponseSentinel
}

// Degraded reports whether at least one section fell back to a placeholder.
// Degraded replies are still rendered; the flag only feeds logs and metrics.
func (r StructuredReply) Degraded() bool {
	if r.IsEmptyResponse() {
		return true
	}
	for _, s := range r.Sections() {
		if s.Text == IncompletePlaceholder || s.Text == UnavailablePlaceholder || strings.TrimSpace(s.Text) == "" {
			return true
		}
	}
	return false
}

func emptyReply(grounding []GroundingReference) StructuredReply {
	return StructuredReply{
		Missing:       EmptyMissing,
		DifferentWay:  EmptyDifferentWay,
		LongTerm:      EmptyLongTerm,
		NextStep:      EmptyNextStep,
		RawText:       EmptyResponseSentinel,
		GroundingURLs: grounding,
	}
}

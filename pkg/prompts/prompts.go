package prompts

import (
	_ "embed"
	"strings"
)

//go:embed system-instruction.md
var systemInstruction string

//go:embed format-reinforcement.md
var formatReinforcement string

const (
	TranscriptionPrompt = "Transcribe the following audio exactly."
	ImageEditedMessage  = "Image manipulation protocol complete. Here is the reframed reality."
)

// SystemInstruction is sent with every text, grounded and live request.
func SystemInstruction() string {
	return strings.TrimSpace(systemInstruction)
}

// FormatReinforcement is appended to grounded requests, which cannot use a
// response schema, so that the reply still carries the four section headings.
func FormatReinforcement() string {
	return "\n\n" + strings.TrimSpace(formatReinforcement)
}

// WithFormatReinforcement appends the heading instructions to message.
func WithFormatReinforcement(message string) string {
	return message + FormatReinforcement()
}

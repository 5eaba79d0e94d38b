package gemini

import (
	"context"

	"github.com/go-go-golems/shift/pkg/audio"
	"github.com/go-go-golems/shift/pkg/prompts"
	genai "google.golang.org/genai"
)

const DefaultTranscriptionMimeType = "audio/wav"

// TranscribeAudio returns the verbatim transcription of the given audio.
func (d *Dispatcher) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = DefaultTranscriptionMimeType
	}
	model := d.settings.Models.Transcription
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(prompts.TranscriptionPrompt),
		}, genai.RoleUser),
	}

	resp, err := d.generate(ctx, "transcribe", model, contents, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GenerateSpeech synthesizes text with the configured prebuilt voice. The
// returned buffer holds 24 kHz mono audio; ok is false when the reply carried
// no audio.
func (d *Dispatcher) GenerateSpeech(ctx context.Context, text string) (*audio.Buffer, bool, error) {
	model := d.settings.Models.Speech
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: d.settings.Voices.Speech},
			},
		},
	}

	resp, err := d.generate(ctx, "speech", model, contents, config)
	if err != nil {
		return nil, false, err
	}

	blob := firstInlineData(resp)
	if blob == nil {
		return nil, false, nil
	}
	return audio.DecodePCM16(blob.Data, audio.OutputSampleRate, 1), true, nil
}

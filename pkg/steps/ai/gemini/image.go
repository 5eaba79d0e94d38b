package gemini

import (
	"context"
	"time"

	"github.com/go-go-golems/shift/pkg/conversation"
	"github.com/go-go-golems/shift/pkg/events"
	"github.com/rs/zerolog/log"
	genai "google.golang.org/genai"
)

// EditImage asks the image model to transform imageData according to prompt.
// It returns the first image of the reply as a data URL. A reply without an
// image is a valid outcome and reported with ok set to false.
func (d *Dispatcher) EditImage(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, bool, error) {
	model := d.settings.Models.Image
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imageData, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	metadata := events.NewEventMetadata()
	metadata.Model = model
	d.publish(ctx, events.NewStartEvent(metadata, prompt))

	start := time.Now()
	resp, err := d.generate(ctx, "edit_image", model, contents, nil)
	metadata.DurationMs = elapsedMs(start)
	if err != nil {
		d.publish(ctx, events.NewErrorEvent(metadata, err))
		return "", false, err
	}

	blob := firstInlineData(resp)
	if blob == nil {
		log.Info().Str("model", model).Msg("Image model returned no image")
		d.publish(ctx, events.NewImageEvent(metadata, ""))
		return "", false, nil
	}

	dataURL := conversation.FormatDataURL(blob.MIMEType, blob.Data)
	d.publish(ctx, events.NewImageEvent(metadata, dataURL))
	return dataURL, true, nil
}

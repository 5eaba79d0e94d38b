package live

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	genai "google.golang.org/genai"
)

// GenaiConnector opens live sessions through the genai SDK.
type GenaiConnector struct {
	client *genai.Client
}

func NewGenaiConnector(client *genai.Client) *GenaiConnector {
	return &GenaiConnector{client: client}
}

func (c *GenaiConnector) Connect(ctx context.Context, cfg ConnectConfig) (Transport, error) {
	session, err := c.client.Live.Connect(ctx, cfg.Model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		SystemInstruction:        genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect live session to %s", cfg.Model)
	}
	return &genaiTransport{session: session}, nil
}

type genaiTransport struct {
	session *genai.Session
}

// Send forwards one PCM frame. The SDK base64-encodes the payload.
func (t *genaiTransport) Send(ctx context.Context, data []byte, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

func (t *genaiTransport) Receive(ctx context.Context) (*ServerMessage, error) {
	msg, err := t.session.Receive()
	if err != nil {
		return nil, err
	}
	return convertServerMessage(msg), nil
}

func (t *genaiTransport) Close() error {
	return t.session.Close()
}

func convertServerMessage(m *genai.LiveServerMessage) *ServerMessage {
	ret := &ServerMessage{}
	if m == nil || m.ServerContent == nil {
		return ret
	}
	sc := m.ServerContent
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			if mt := p.InlineData.MIMEType; mt != "" && !strings.HasPrefix(mt, "audio/") {
				continue
			}
			ret.AudioChunks = append(ret.AudioChunks, p.InlineData.Data)
		}
	}
	ret.Interrupted = sc.Interrupted
	ret.TurnComplete = sc.TurnComplete
	if sc.InputTranscription != nil {
		ret.InputTranscription = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ret.OutputTranscription = sc.OutputTranscription.Text
	}
	return ret
}

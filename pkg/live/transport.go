package live

import (
	"context"

	"github.com/go-go-golems/shift/pkg/prompts"
	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
)

// ServerMessage is the part of a live server message the session acts on.
type ServerMessage struct {
	// AudioChunks holds the raw PCM16 24 kHz mono payload of every inline
	// audio part of the model turn, in order.
	AudioChunks         [][]byte
	Interrupted         bool
	TurnComplete        bool
	InputTranscription  string
	OutputTranscription string
}

// Transport is an open bidirectional live connection.
type Transport interface {
	Send(ctx context.Context, data []byte, mimeType string) error
	// Receive blocks until the next server message. It returns an error once
	// the connection is closed by either side.
	Receive(ctx context.Context) (*ServerMessage, error)
	Close() error
}

// Connector opens live connections.
type Connector interface {
	Connect(ctx context.Context, cfg ConnectConfig) (Transport, error)
}

type ConnectConfig struct {
	Model             string
	Voice             string
	SystemInstruction string
}

func NewConnectConfig(s *settings.StepSettings) ConnectConfig {
	return ConnectConfig{
		Model:             s.Models.Live,
		Voice:             s.Voices.Live,
		SystemInstruction: prompts.SystemInstruction(),
	}
}

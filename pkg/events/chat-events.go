package events

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart and EventTypeFinal bracket a single provider request
	EventTypeStart EventType = "start"
	EventTypeFinal EventType = "final"
	EventTypeError EventType = "error"

	// Image edit produced (or did not produce) an image
	EventTypeImage EventType = "image"

	// Live session events
	EventTypeSessionState  EventType = "session-state"
	EventTypeInterrupt     EventType = "interrupt"
	EventTypeTranscription EventType = "transcription"
	EventTypeTurnComplete  EventType = "turn-complete"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
	Message string `json:"message,omitempty"`
}

func NewStartEvent(metadata EventMetadata, message string) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
		Message:   message,
	}
}

var _ Event = &EventStart{}

type EventFinal struct {
	EventImpl
	Reply    reply.StructuredReply `json:"reply"`
	Degraded bool                  `json:"degraded,omitempty"`
}

func NewFinalEvent(metadata EventMetadata, r reply.StructuredReply) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Reply:     r,
		Degraded:  r.Degraded(),
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

type EventImage struct {
	EventImpl
	// DataURL is empty when the provider returned no image
	DataURL string `json:"data_url,omitempty"`
}

func NewImageEvent(metadata EventMetadata, dataURL string) *EventImage {
	return &EventImage{
		EventImpl: EventImpl{Type_: EventTypeImage, Metadata_: metadata},
		DataURL:   dataURL,
	}
}

var _ Event = &EventImage{}

type EventSessionState struct {
	EventImpl
	State string `json:"state"`
}

func NewSessionStateEvent(metadata EventMetadata, state string) *EventSessionState {
	return &EventSessionState{
		EventImpl: EventImpl{Type_: EventTypeSessionState, Metadata_: metadata},
		State:     state,
	}
}

var _ Event = &EventSessionState{}

type EventInterrupt struct {
	EventImpl
	// DiscardedSources is the number of scheduled audio sources that were dropped
	DiscardedSources int `json:"discarded_sources"`
}

func NewInterruptEvent(metadata EventMetadata, discarded int) *EventInterrupt {
	return &EventInterrupt{
		EventImpl:        EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		DiscardedSources: discarded,
	}
}

var _ Event = &EventInterrupt{}

type TranscriptionDirection string

const (
	TranscriptionInput  TranscriptionDirection = "input"
	TranscriptionOutput TranscriptionDirection = "output"
)

type EventTranscription struct {
	EventImpl
	Direction TranscriptionDirection `json:"direction"`
	Text      string                 `json:"text"`
}

func NewTranscriptionEvent(metadata EventMetadata, direction TranscriptionDirection, text string) *EventTranscription {
	return &EventTranscription{
		EventImpl: EventImpl{Type_: EventTypeTranscription, Metadata_: metadata},
		Direction: direction,
		Text:      text,
	}
}

var _ Event = &EventTranscription{}

type EventTurnComplete struct {
	EventImpl
}

func NewTurnCompleteEvent(metadata EventMetadata) *EventTurnComplete {
	return &EventTurnComplete{
		EventImpl: EventImpl{Type_: EventTypeTurnComplete, Metadata_: metadata},
	}
}

var _ Event = &EventTurnComplete{}

// EventMetadata is passed along with every event.
type EventMetadata struct {
	ID        uuid.UUID `json:"message_id" yaml:"message_id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	TurnID    string    `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
	// Grounding is one of none, search or maps
	Grounding  string                 `json:"grounding,omitempty" yaml:"grounding,omitempty"`
	DurationMs *int64                 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func NewEventMetadata() EventMetadata {
	return EventMetadata{ID: uuid.New()}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.Grounding != "" {
		e.Str("grounding", em.Grounding)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

func decodeTyped[T any](b []byte) (*T, error) {
	ret := new(T)
	if err := json.Unmarshal(b, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// NewEventFromJson decodes an event serialized by one of the sinks.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	var (
		ev  Event
		err error
	)
	switch hdr.Type {
	case EventTypeStart:
		ev, err = decodeTyped[EventStart](b)
	case EventTypeFinal:
		ev, err = decodeTyped[EventFinal](b)
	case EventTypeError:
		ev, err = decodeTyped[EventError](b)
	case EventTypeImage:
		ev, err = decodeTyped[EventImage](b)
	case EventTypeSessionState:
		ev, err = decodeTyped[EventSessionState](b)
	case EventTypeInterrupt:
		ev, err = decodeTyped[EventInterrupt](b)
	case EventTypeTranscription:
		ev, err = decodeTyped[EventTranscription](b)
	case EventTypeTurnComplete:
		ev, err = decodeTyped[EventTurnComplete](b)
	default:
		return nil, fmt.Errorf("unknown event type: %q", hdr.Type)
	}
	if err != nil {
		return nil, err
	}
	if setter, ok := ev.(interface{ SetPayload([]byte) }); ok {
		setter.SetPayload(b)
	}
	return ev, nil
}

package conversation

import (
	"time"

	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation, either the user's input or the
// assistant's answer. Turns are immutable once appended to a History.
type Turn struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Content   string    `json:"content" yaml:"content"`

	// Image is the data URL of an image attached by the user.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	// EditedImage is the data URL returned by an image edit.
	EditedImage string `json:"editedImage,omitempty" yaml:"editedImage,omitempty"`

	Reply *reply.StructuredReply `json:"structuredData,omitempty" yaml:"structuredData,omitempty"`
}

type TurnOption func(*Turn)

func WithImage(dataURL string) TurnOption {
	return func(t *Turn) {
		t.Image = dataURL
	}
}

func WithEditedImage(dataURL string) TurnOption {
	return func(t *Turn) {
		t.EditedImage = dataURL
	}
}

func WithReply(r reply.StructuredReply) TurnOption {
	return func(t *Turn) {
		t.Reply = &r
	}
}

func WithTime(ts time.Time) TurnOption {
	return func(t *Turn) {
		t.Timestamp = ts
	}
}

func NewTurn(role Role, content string, options ...TurnOption) Turn {
	ret := Turn{
		ID:        uuid.New(),
		Role:      role,
		Timestamp: time.Now(),
		Content:   content,
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func NewUserTurn(content string, options ...TurnOption) Turn {
	return NewTurn(RoleUser, content, options...)
}

func NewAssistantTurn(content string, options ...TurnOption) Turn {
	return NewTurn(RoleAssistant, content, options...)
}

// clone copies the turn so that the reply's grounding slice is not shared.
func (t Turn) clone() Turn {
	if t.Reply != nil {
		r := *t.Reply
		if r.GroundingURLs != nil {
			r.GroundingURLs = append([]reply.GroundingReference(nil), r.GroundingURLs...)
		}
		t.Reply = &r
	}
	return t
}

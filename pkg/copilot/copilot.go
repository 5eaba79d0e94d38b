package copilot

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/shift/pkg/conversation"
	"github.com/go-go-golems/shift/pkg/metrics"
	"github.com/go-go-golems/shift/pkg/prompts"
	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyRequest = errors.New("request has neither text nor image")
	ErrBusy         = errors.New("a request is already in progress")
)

// Dispatcher is the subset of *gemini.Dispatcher the copilot uses.
type Dispatcher interface {
	Send(ctx context.Context, message string, mode gemini.GroundingMode) (reply.StructuredReply, error)
	EditImage(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, bool, error)
}

var _ Dispatcher = (*gemini.Dispatcher)(nil)

type Request struct {
	Text      string
	Image     *conversation.Image
	Grounding gemini.GroundingMode
}

type Response struct {
	User      conversation.Turn
	Assistant conversation.Turn
	// Failure is set when the assistant turn renders an error.
	Failure FailureKind
}

// Copilot runs one send/receive cycle at a time and records every turn.
type Copilot struct {
	dispatcher Dispatcher
	history    *conversation.History
	metrics    *metrics.Metrics
	busy       sync.Mutex
}

type Option func(*Copilot)

func WithHistory(h *conversation.History) Option {
	return func(c *Copilot) {
		c.history = h
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Copilot) {
		c.metrics = m
	}
}

func New(d Dispatcher, options ...Option) *Copilot {
	ret := &Copilot{dispatcher: d}
	for _, o := range options {
		o(ret)
	}
	if ret.history == nil {
		ret.history = conversation.NewHistory()
	}
	return ret
}

func (c *Copilot) History() *conversation.History {
	return c.history
}

// Send records the user turn, routes the request to an image edit (image and
// text) or a text message (everything else), and records the assistant turn.
// Failures are rendered as an assistant turn as well; the error is returned
// alongside for logging.
func (c *Copilot) Send(ctx context.Context, req Request) (*Response, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Image == nil {
		return nil, ErrEmptyRequest
	}
	if !c.busy.TryLock() {
		return nil, ErrBusy
	}
	defer c.busy.Unlock()

	var userOpts []conversation.TurnOption
	if req.Image != nil {
		userOpts = append(userOpts, conversation.WithImage(req.Image.DataURL()))
	}
	user := conversation.NewUserTurn(req.Text, userOpts...)
	c.history.Append(user)

	assistant, err := c.respond(ctx, req, text)
	resp := &Response{User: user}
	if err != nil {
		kind := Classify(err)
		c.metrics.IncFailure(string(kind))
		log.Error().Err(err).Str("kind", string(kind)).Msg("SHIFT failure")
		fr := FailureReply(kind, err)
		assistant = conversation.NewAssistantTurn(fr.RawText, conversation.WithReply(fr))
		resp.Failure = kind
	}
	c.history.Append(assistant)
	resp.Assistant = assistant
	return resp, err
}

func (c *Copilot) respond(ctx context.Context, req Request, text string) (conversation.Turn, error) {
	if req.Image != nil && text != "" {
		dataURL, ok, err := c.dispatcher.EditImage(ctx, req.Text, req.Image.Data, req.Image.MimeType)
		if err != nil {
			return conversation.Turn{}, err
		}
		var opts []conversation.TurnOption
		if ok {
			opts = append(opts, conversation.WithEditedImage(dataURL))
		}
		return conversation.NewAssistantTurn(prompts.ImageEditedMessage, opts...), nil
	}

	mode := req.Grounding
	if mode == "" {
		mode = gemini.GroundingNone
	}
	r, err := c.dispatcher.Send(ctx, req.Text, mode)
	if err != nil {
		return conversation.Turn{}, err
	}
	return conversation.NewAssistantTurn(r.RawText, conversation.WithReply(r)), nil
}

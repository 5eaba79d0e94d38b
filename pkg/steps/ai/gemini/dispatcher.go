package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/shift/pkg/events"
	"github.com/go-go-golems/shift/pkg/geolocation"
	"github.com/go-go-golems/shift/pkg/helpers"
	"github.com/go-go-golems/shift/pkg/metrics"
	"github.com/go-go-golems/shift/pkg/prompts"
	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	genai "google.golang.org/genai"
)

type GroundingMode string

const (
	GroundingNone   GroundingMode = "none"
	GroundingSearch GroundingMode = "search"
	GroundingMaps   GroundingMode = "maps"
)

// GroundingFromFlags resolves the two UI toggles into a mode. Search wins over maps.
func GroundingFromFlags(useSearch, useMaps bool) GroundingMode {
	switch {
	case useSearch:
		return GroundingSearch
	case useMaps:
		return GroundingMaps
	default:
		return GroundingNone
	}
}

func ParseGroundingMode(s string) (GroundingMode, error) {
	switch GroundingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroundingNone:
		return GroundingNone, nil
	case GroundingSearch:
		return GroundingSearch, nil
	case GroundingMaps:
		return GroundingMaps, nil
	default:
		return "", errors.Errorf("unknown grounding mode %q (expected none, search or maps)", s)
	}
}

// Dispatcher issues requests to the Gemini API and normalizes their replies.
type Dispatcher struct {
	settings *settings.StepSettings
	client   ModelClient
	locator  geolocation.Locator
	sinks    []events.EventSink
	metrics  *metrics.Metrics
}

type DispatcherOption func(*Dispatcher)

func WithLocator(l geolocation.Locator) DispatcherOption {
	return func(d *Dispatcher) {
		d.locator = l
	}
}

func WithEventSinks(sinks ...events.EventSink) DispatcherOption {
	return func(d *Dispatcher) {
		d.sinks = append(d.sinks, sinks...)
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(s *settings.StepSettings, client ModelClient, options ...DispatcherOption) *Dispatcher {
	ret := &Dispatcher{
		settings: s.Clone(),
		client:   client,
		locator:  geolocation.NoopLocator{},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// NewLocator builds the locator configured in the settings: a fixed position
// when one is set, otherwise an IP lookup.
func NewLocator(s *settings.StepSettings) geolocation.Locator {
	switch {
	case s.Location.Disabled:
		return geolocation.NoopLocator{}
	case s.HasFixedLocation():
		return &geolocation.StaticLocator{Position: geolocation.Position{
			Latitude:  *s.Location.Latitude,
			Longitude: *s.Location.Longitude,
		}}
	default:
		return geolocation.NewIPLocator(s.Location.IPLookupURL)
	}
}

func (d *Dispatcher) Settings() *settings.StepSettings {
	return d.settings.Clone()
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.settings.Client.Timeout > 0 {
		return context.WithTimeout(ctx, d.settings.Client.Timeout)
	}
	return context.WithCancel(ctx)
}

// publish sends e to the dispatcher's sinks and to the sinks attached to ctx.
func (d *Dispatcher) publish(ctx context.Context, e events.Event) {
	events.PublishAll(d.sinks, e)
	events.PublishEventToContext(ctx, e)
}

func elapsedMs(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}

func (d *Dispatcher) generate(
	ctx context.Context,
	operation string,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	if err := d.settings.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := d.client.GenerateContent(ctx, model, contents, config)
	if err != nil {
		err = newProviderError(operation, model, err)
	}
	d.metrics.ObserveRequest(operation, model, start, err)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("operation", operation).
		Str("model", model).
		Dur("duration", time.Since(start)).
		Int("candidates", len(resp.Candidates)).
		Msg("Provider request finished")
	return resp, nil
}

// SendTextMessage sends a message with the two grounding toggles of the UI.
func (d *Dispatcher) SendTextMessage(ctx context.Context, message string, useSearch, useMaps bool) (reply.StructuredReply, error) {
	return d.Send(ctx, message, GroundingFromFlags(useSearch, useMaps))
}

// TextRequest is the fully resolved provider request for a text message.
type TextRequest struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// BuildTextRequest resolves model, tools and response format for the given
// grounding mode. Maps grounding waits a bounded time for the caller's
// position and continues without it on failure.
func (d *Dispatcher) BuildTextRequest(ctx context.Context, message string, mode GroundingMode) TextRequest {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompts.SystemInstruction(), genai.RoleUser),
		Temperature:       helpers.Float32Pointer(d.settings.Temperature),
	}

	model := d.settings.Models.Default
	text := message

	switch mode {
	case GroundingSearch:
		model = d.settings.Models.Search
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		text = prompts.WithFormatReinforcement(message)

	case GroundingMaps:
		model = d.settings.Models.Maps
		config.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
		text = prompts.WithFormatReinforcement(message)

		pos, err := geolocation.LocateWithin(ctx, d.locator, d.settings.Location.Timeout)
		if err != nil {
			log.Warn().Err(err).Msg("Location access denied or timed out for maps grounding")
		} else {
			config.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{
						Latitude:  helpers.Float64Pointer(pos.Latitude),
						Longitude: helpers.Float64Pointer(pos.Longitude),
					},
				},
			}
		}

	default:
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = ReplyResponseSchema()
	}

	return TextRequest{
		Model:    model,
		Contents: []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		Config:   config,
	}
}

// Send sends a text message and normalizes the reply into the four-field shape.
func (d *Dispatcher) Send(ctx context.Context, message string, mode GroundingMode) (reply.StructuredReply, error) {
	if err := d.settings.Validate(); err != nil {
		return reply.StructuredReply{}, err
	}

	req := d.BuildTextRequest(ctx, message, mode)

	metadata := events.NewEventMetadata()
	metadata.Model = req.Model
	metadata.Grounding = string(mode)
	d.publish(ctx, events.NewStartEvent(metadata, message))

	start := time.Now()
	resp, err := d.generate(ctx, "send_text", req.Model, req.Contents, req.Config)
	if err == nil && len(resp.Candidates) == 0 {
		err = ErrNoCandidates
	}
	if err != nil {
		metadata.DurationMs = elapsedMs(start)
		d.publish(ctx, events.NewErrorEvent(metadata, err))
		return reply.StructuredReply{}, err
	}

	text := resp.Text()
	if mode == GroundingNone {
		if verr := ValidateReplyJSON(text); verr != nil {
			log.Debug().Err(verr).Msg("Structured reply did not match the response schema")
			d.metrics.IncDegraded("schema")
		}
	}

	r := reply.Normalize(text, groundingChunks(resp.Candidates[0]))
	if r.Degraded() {
		log.Debug().Bool("empty", r.IsEmptyResponse()).Msg("Reply fell back to placeholder text")
		d.metrics.IncDegraded("parse")
	}

	metadata.DurationMs = elapsedMs(start)
	d.publish(ctx, events.NewFinalEvent(metadata, r))
	return r, nil
}

func groundingChunks(c *genai.Candidate) []reply.RawChunk {
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}
	ret := make([]reply.RawChunk, 0, len(c.GroundingMetadata.GroundingChunks))
	for _, gc := range c.GroundingMetadata.GroundingChunks {
		if gc == nil {
			continue
		}
		var rc reply.RawChunk
		if gc.Web != nil {
			rc.Web = &reply.ChunkSource{URI: gc.Web.URI, Title: gc.Web.Title}
		}
		if gc.Maps != nil {
			rc.Maps = &reply.ChunkSource{URI: gc.Maps.URI, Title: gc.Maps.Title}
		}
		ret = append(ret, rc)
	}
	return ret
}

// firstInlineData returns the first inline data part of the first candidate.
func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil
	}
	for _, p := range c.Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}

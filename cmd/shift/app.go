package main

import (
	"context"
	"io"
	"os"

	"github.com/go-go-golems/shift/pkg/events"
	"github.com/go-go-golems/shift/pkg/helpers"
	"github.com/go-go-golems/shift/pkg/metrics"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	genai "google.golang.org/genai"
)

// app holds what every command needs to talk to the model.
type app struct {
	settings   *settings.StepSettings
	client     *genai.Client
	dispatcher *gemini.Dispatcher
}

// newApp loads the settings and creates the provider client. When
// requireCredential is false and no API key is configured, the dispatcher is
// still created: every request then fails with ErrMissingCredential and is
// rendered as such.
func newApp(ctx context.Context, requireCredential bool, m *metrics.Metrics, sinks []events.EventSink) (*app, error) {
	s, err := settings.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	var modelClient gemini.ModelClient
	var client *genai.Client
	if err := s.Validate(); err != nil {
		if requireCredential {
			return nil, err
		}
		log.Warn().Err(err).Msg("Set API_KEY or GEMINI_API_KEY to talk to the model")
	} else {
		client, err = gemini.NewClient(ctx, s)
		if err != nil {
			return nil, err
		}
		modelClient = client.Models
	}

	d := gemini.NewDispatcher(s, modelClient,
		gemini.WithLocator(gemini.NewLocator(s)),
		gemini.WithEventSinks(sinks...),
		gemini.WithMetrics(m),
	)
	return &app{settings: s, client: client, dispatcher: d}, nil
}

const (
	verboseText = "text"
	verboseRaw  = "raw"
)

// newEventRouter creates a router printing every event to w, either as one
// line per event (text) or as indented JSON (raw). At trace level raw events
// keep their full metadata.
func newEventRouter(mode string, w io.Writer) (*events.EventRouter, error) {
	options := []events.EventRouterOption{}
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		options = append(options, events.WithLogger(helpers.NewWatermill(log.Logger)))
	}
	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		options = append(options, events.WithVerbose(true))
	}

	router, err := events.NewEventRouter(options...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create event router")
	}
	switch mode {
	case verboseText:
		router.AddHandler("printer", events.DefaultTopic, events.StepPrinterFunc("", w))
	case verboseRaw:
		router.AddHandler("raw", events.DefaultTopic, router.DumpRawEvents(w))
	default:
		_ = router.Close()
		return nil, errors.Errorf("unknown --verbose mode %q (text, raw)", mode)
	}
	return router, nil
}

// runWithEvents runs f with an event sink printing every provider event to
// stderr when --verbose is set, and with no sinks otherwise.
func runWithEvents(ctx context.Context, f func(ctx context.Context, sinks []events.EventSink) error) error {
	mode := viper.GetString("verbose")
	if mode == "" {
		return f(ctx, nil)
	}

	router, err := newEventRouter(mode, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()

	eg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)

	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return f(ctx, []events.EventSink{router.Sink(events.DefaultTopic)})
	})

	return eg.Wait()
}

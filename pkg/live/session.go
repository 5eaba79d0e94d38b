package live

import (
	"context"
	"io"
	"sync"

	"github.com/go-go-golems/shift/pkg/audio"
	"github.com/go-go-golems/shift/pkg/events"
	"github.com/go-go-golems/shift/pkg/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotIdle = errors.New("live session is already running")
	// ErrClosedWhileConnecting is returned by Start when Close was called
	// before the connection was established.
	ErrClosedWhileConnecting = errors.New("live session closed while connecting")

	errCaptureEnded = errors.New("capture source ended")
	errRemoteClosed = errors.New("live session closed by server")
)

type CaptureFactory func(ctx context.Context) (CaptureSource, error)
type OutputFactory func() (Output, error)

// Session is a duplex voice conversation with the model. It moves from Idle
// to Connecting to Active and back to Idle; Close is the only teardown path.
type Session struct {
	connector  Connector
	config     ConnectConfig
	newCapture CaptureFactory
	newOutput  OutputFactory

	onTranscription func(direction events.TranscriptionDirection, text string)
	onVolume        func(level uint8)
	onStateChange   func(state State)

	sinks   []events.EventSink
	metrics *metrics.Metrics

	mu            sync.Mutex
	state         State
	connectCancel context.CancelFunc
	current       *run
	// last is the most recently started run, kept after Close for Wait and Done.
	last *run
}

// run holds everything owned by one Start.
type run struct {
	id        string
	transport Transport
	capture   CaptureSource
	output    Output
	scheduler *Scheduler
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

type SessionOption func(*Session)

func WithCapture(f CaptureFactory) SessionOption {
	return func(s *Session) {
		s.newCapture = f
	}
}

func WithOutput(f OutputFactory) SessionOption {
	return func(s *Session) {
		s.newOutput = f
	}
}

func WithTranscriptionHandler(f func(direction events.TranscriptionDirection, text string)) SessionOption {
	return func(s *Session) {
		s.onTranscription = f
	}
}

func WithVolumeHandler(f func(level uint8)) SessionOption {
	return func(s *Session) {
		s.onVolume = f
	}
}

func WithStateHandler(f func(state State)) SessionOption {
	return func(s *Session) {
		s.onStateChange = f
	}
}

func WithEventSinks(sinks ...events.EventSink) SessionOption {
	return func(s *Session) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

func NewSession(connector Connector, config ConnectConfig, options ...SessionOption) *Session {
	ret := &Session{
		connector: connector,
		config:    config,
		state:     StateIdle,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState must be called with mu held. Callbacks run after the lock is released.
func (s *Session) setState(state State) func() {
	if s.state == state {
		return func() {}
	}
	s.state = state
	id := ""
	if s.current != nil {
		id = s.current.id
	}
	return func() {
		if s.onStateChange != nil {
			s.onStateChange(state)
		}
		metadata := events.NewEventMetadata()
		metadata.SessionID = id
		metadata.Model = s.config.Model
		events.PublishAll(s.sinks, events.NewSessionStateEvent(metadata, state.String()))
	}
}

// Start connects to the model and starts streaming. It is only valid from Idle.
// The session keeps running after Start returns until Close is called, the
// capture source ends, the server closes the connection or ctx is canceled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	connectCtx, connectCancel := context.WithCancel(ctx)
	s.connectCancel = connectCancel
	notify := s.setState(StateConnecting)
	s.mu.Unlock()
	notify()

	r, err := s.open(connectCtx)

	s.mu.Lock()
	s.connectCancel = nil
	if err == nil && s.state != StateConnecting {
		err = ErrClosedWhileConnecting
	}
	if err != nil {
		connectCancel()
		notify = s.setState(StateIdle)
		s.mu.Unlock()
		if r != nil {
			r.release()
		}
		notify()
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	s.current = r
	s.last = r
	notify = s.setState(StateActive)
	s.mu.Unlock()
	connectCancel()

	notify()
	s.metrics.LiveSessionStarted()
	log.Info().Str("session_id", r.id).Str("model", s.config.Model).Msg("Live session active")

	g, gctx := errgroup.WithContext(workerCtx)
	g.Go(func() error { return s.captureLoop(gctx, r) })
	g.Go(func() error { return s.receiveLoop(gctx, r) })
	g.Go(func() error {
		<-gctx.Done()
		s.closeRun(r)
		return nil
	})

	go func() {
		err := g.Wait()
		if err != nil && !isNormalEnd(err) {
			log.Warn().Err(err).Str("session_id", r.id).Msg("Live session ended with error")
			r.err = err
		}
		close(r.done)
	}()

	return nil
}

func isNormalEnd(err error) bool {
	return errors.Is(err, errCaptureEnded) || errors.Is(err, errRemoteClosed) || errors.Is(err, context.Canceled)
}

func (s *Session) open(ctx context.Context) (*run, error) {
	r := &run{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}

	var err error
	if s.newCapture != nil {
		if r.capture, err = s.newCapture(ctx); err != nil {
			return r, errors.Wrap(err, "could not open capture source")
		}
	}
	if s.newOutput != nil {
		if r.output, err = s.newOutput(); err != nil {
			return r, errors.Wrap(err, "could not open playback output")
		}
		r.scheduler = NewScheduler(r.output)
	}

	r.transport, err = s.connector.Connect(ctx, s.config)
	if err != nil {
		return r, err
	}
	return r, nil
}

// release closes every resource the run holds.
func (r *run) release() {
	if r.transport != nil {
		if err := r.transport.Close(); err != nil {
			log.Debug().Err(err).Msg("Could not close live transport")
		}
	}
	if r.output != nil {
		if err := r.output.Close(); err != nil {
			log.Debug().Err(err).Msg("Could not close playback output")
		}
	}
	if r.capture != nil {
		if err := r.capture.Close(); err != nil {
			log.Debug().Err(err).Msg("Could not close capture source")
		}
	}
}

// Close tears the session down from any state. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.connectCancel != nil {
		s.connectCancel()
		s.connectCancel = nil
	}
	r := s.current
	s.mu.Unlock()

	if r == nil {
		s.mu.Lock()
		notify := s.setState(StateIdle)
		s.mu.Unlock()
		notify()
		return nil
	}
	s.closeRun(r)
	return nil
}

// closeRun tears down r if it is still the current run.
func (s *Session) closeRun(r *run) {
	s.mu.Lock()
	if s.current != r {
		s.mu.Unlock()
		return
	}
	notify := s.setState(StateIdle)
	s.current = nil
	s.mu.Unlock()

	r.cancel()
	r.release()
	if s.onVolume != nil {
		s.onVolume(0)
	}
	s.metrics.LiveSessionEnded()
	notify()
	log.Info().Str("session_id", r.id).Msg("Live session closed")
}

// Done is closed once the loops of the last started run have exited. It
// returns a closed channel when the session was never started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return s.last.done
}

// Wait blocks until the last started run has ended and returns the error
// that ended it, if any.
func (s *Session) Wait() error {
	s.mu.Lock()
	r := s.last
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	<-r.done
	return r.err
}

func (s *Session) captureLoop(ctx context.Context, r *run) error {
	if r.capture == nil {
		<-ctx.Done()
		return nil
	}
	for {
		frame, err := r.capture.ReadFrame(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Str("session_id", r.id).Msg("Capture source ended")
				return errCaptureEnded
			}
			return errors.Wrap(err, "capture failed")
		}

		if s.onVolume != nil {
			s.onVolume(Level(frame))
		}
		if err := r.transport.Send(ctx, audio.FloatToPCM16(frame), audio.InputMimeType); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "could not send audio frame")
		}
		s.metrics.IncFramesSent()
	}
}

func (s *Session) receiveLoop(ctx context.Context, r *run) error {
	for {
		msg, err := r.transport.Receive(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Str("session_id", r.id).Msg("Live session closed by server")
				return errRemoteClosed
			}
			return errors.Wrap(err, "live receive failed")
		}
		s.dispatch(r, msg)
	}
}

// dispatch applies one server message: audio is scheduled, an interruption
// drops all pending audio, transcriptions and turn completion are reported.
func (s *Session) dispatch(r *run, msg *ServerMessage) {
	if msg == nil {
		return
	}
	metadata := events.NewEventMetadata()
	metadata.SessionID = r.id
	metadata.Model = s.config.Model

	for _, chunk := range msg.AudioChunks {
		s.metrics.IncChunksReceived()
		if r.scheduler == nil {
			continue
		}
		buf := audio.DecodePCM16(chunk, audio.OutputSampleRate, 1)
		if _, err := r.scheduler.Enqueue(buf); err != nil {
			log.Debug().Err(err).Msg("Could not schedule model audio")
		}
	}

	if msg.Interrupted {
		dropped := 0
		if r.scheduler != nil {
			dropped = r.scheduler.Interrupt()
		}
		s.metrics.IncInterruptions()
		log.Debug().Int("dropped", dropped).Msg("Playback interrupted")
		events.PublishAll(s.sinks, events.NewInterruptEvent(metadata, dropped))
	}

	if msg.InputTranscription != "" {
		s.transcription(metadata, events.TranscriptionInput, msg.InputTranscription)
	}
	if msg.OutputTranscription != "" {
		s.transcription(metadata, events.TranscriptionOutput, msg.OutputTranscription)
	}

	if msg.TurnComplete {
		events.PublishAll(s.sinks, events.NewTurnCompleteEvent(metadata))
	}
}

func (s *Session) transcription(metadata events.EventMetadata, direction events.TranscriptionDirection, text string) {
	if s.onTranscription != nil {
		s.onTranscription(direction, text)
	}
	events.PublishAll(s.sinks, events.NewTranscriptionEvent(metadata, direction, text))
}

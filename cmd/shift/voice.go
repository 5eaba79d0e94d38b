package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-go-golems/shift/pkg/events"
	"github.com/go-go-golems/shift/pkg/live"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func newVoiceCommand() *cobra.Command {
	var inputPath, outputPath string
	var showVolume bool

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Hold a real-time voice conversation",
		Long: `Hold a real-time voice conversation.

Input is raw float32 little-endian mono audio at 16 kHz, for example:

  ffmpeg -f pulse -i default -f f32le -ar 16000 -ac 1 - | shift voice --output reply.pcm

Output is raw signed 16-bit little-endian mono audio at 24 kHz, written at the
time each chunk is due to play:

  shift voice --input mic.f32 --output - | ffplay -f s16le -ar 24000 -ac 1 -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWithEvents(ctx, func(ctx context.Context, sinks []events.EventSink) error {
				a, err := newApp(ctx, true, nil, sinks)
				if err != nil {
					return err
				}

				stderr := cmd.ErrOrStderr()
				session := live.NewSession(
					live.NewGenaiConnector(a.client),
					live.NewConnectConfig(a.settings),
					live.WithCapture(func(ctx context.Context) (live.CaptureSource, error) {
						r, err := openInput(inputPath)
						if err != nil {
							return nil, err
						}
						return live.NewReaderCapture(r, a.settings.Live.FrameSize), nil
					}),
					live.WithOutput(func() (live.Output, error) {
						w, err := openOutput(outputPath)
						if err != nil {
							return nil, err
						}
						return live.NewWriterOutput(w), nil
					}),
					live.WithTranscriptionHandler(func(direction events.TranscriptionDirection, text string) {
						who := "you"
						if direction == events.TranscriptionOutput {
							who = "shift"
						}
						fmt.Fprintf(stderr, "\n[%s] %s\n", who, text)
					}),
					live.WithVolumeHandler(func(level uint8) {
						if showVolume {
							n := int(level) * 20 / 255
							fmt.Fprintf(stderr, "\r[%-20s]", strings.Repeat("#", n))
						}
					}),
					live.WithStateHandler(func(state live.State) {
						log.Info().Str("state", state.String()).Msg("Voice session")
					}),
					live.WithEventSinks(sinks...),
				)

				if err := session.Start(ctx); err != nil {
					return errors.Wrap(err, "could not start voice session")
				}

				select {
				case <-ctx.Done():
				case <-session.Done():
				}
				if err := session.Close(); err != nil {
					return err
				}
				return session.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "-", "Microphone stream (f32le, 16 kHz, mono), - for stdin")
	cmd.Flags().StringVar(&outputPath, "output", "-", "Speaker stream (s16le, 24 kHz, mono), - for stdout")
	cmd.Flags().BoolVar(&showVolume, "show-volume", false, "Draw the input level on stderr")
	return cmd
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open audio input")
	}
	return f, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" || path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not create audio output")
	}
	return f, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/shift/pkg/audio"
	"github.com/go-go-golems/shift/pkg/conversation"
	"github.com/go-go-golems/shift/pkg/events"
	"github.com/go-go-golems/shift/pkg/prompts"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newEditImageCommand() *cobra.Command {
	var imagePath, outPath string

	cmd := &cobra.Command{
		Use:   "edit-image --image <path> [prompt...]",
		Short: "Edit an image following a text instruction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := conversation.NewImageFromFile(imagePath)
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")

			return runWithEvents(cmd.Context(), func(ctx context.Context, sinks []events.EventSink) error {
				a, err := newApp(ctx, true, nil, sinks)
				if err != nil {
					return err
				}
				dataURL, ok, err := a.dispatcher.EditImage(ctx, prompt, img.Data, img.MimeType)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("the model returned no image")
				}
				edited, err := conversation.ParseDataURL(dataURL)
				if err != nil {
					return err
				}

				if outPath == "" {
					outPath = editedImagePath(imagePath, edited.MimeType)
				}
				if err := os.WriteFile(outPath, edited.Data, 0644); err != nil {
					return errors.Wrap(err, "could not write edited image")
				}
				fmt.Fprintln(cmd.OutOrStdout(), prompts.ImageEditedMessage)
				fmt.Fprintln(cmd.OutOrStdout(), outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "Image to edit (png, jpeg, webp, gif)")
	cmd.Flags().StringVar(&outPath, "out", "", "Where to write the edited image (default <image>-edited.<ext>)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func editedImagePath(src, mimeType string) string {
	ext := ".png"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}
	base := strings.TrimSuffix(src, filepath.Ext(src))
	return base + "-edited" + ext
}

func audioMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mp3"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".aac":
		return "audio/aac"
	case ".aiff":
		return "audio/aiff"
	case ".webm":
		return "audio/webm"
	default:
		return gemini.DefaultTranscriptionMimeType
	}
}

func newTranscribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a recording verbatim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "could not read audio file")
			}

			return runWithEvents(cmd.Context(), func(ctx context.Context, sinks []events.EventSink) error {
				a, err := newApp(ctx, true, nil, sinks)
				if err != nil {
					return err
				}
				text, err := a.dispatcher.TranscribeAudio(ctx, data, audioMimeType(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newSpeakCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Read text aloud with the configured voice and write a WAV file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			return runWithEvents(cmd.Context(), func(ctx context.Context, sinks []events.EventSink) error {
				a, err := newApp(ctx, true, nil, sinks)
				if err != nil {
					return err
				}
				return writeSpeech(ctx, a.dispatcher, text, outPath)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "speech.wav", "Output WAV file")
	return cmd
}

type speaker interface {
	GenerateSpeech(ctx context.Context, text string) (*audio.Buffer, bool, error)
}

// writeSpeech synthesizes text and writes it as a WAV file to path.
func writeSpeech(ctx context.Context, s speaker, text string, path string) error {
	buf, ok, err := s.GenerateSpeech(ctx, text)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("the model returned no audio")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create output file")
	}
	defer f.Close()
	if err := buf.WriteWAV(f); err != nil {
		return err
	}
	log.Info().Str("file", path).Dur("duration", buf.Duration()).Msg("Wrote speech")
	return nil
}

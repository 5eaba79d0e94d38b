package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/shift/pkg/conversation"
	"github.com/go-go-golems/shift/pkg/copilot"
	"github.com/go-go-golems/shift/pkg/events"
	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type outputSettings struct {
	format string
	style  string
}

func addOutputFlags(cmd *cobra.Command, o *outputSettings) {
	cmd.Flags().StringVar(&o.format, "output", "terminal", "Output format (terminal, markdown, json)")
	cmd.Flags().StringVar(&o.style, "style", "dark", "Glamour style used by the terminal output")
}

func addGroundingFlags(cmd *cobra.Command, grounding *string, useSearch, useMaps *bool) {
	cmd.Flags().StringVar(grounding, "grounding", "", "Grounding mode (none, search, maps)")
	cmd.Flags().BoolVar(useSearch, "search", false, "Ground the answer in web search results")
	cmd.Flags().BoolVar(useMaps, "maps", false, "Ground the answer in map results near your location")
}

func resolveGrounding(grounding string, useSearch, useMaps bool) (gemini.GroundingMode, error) {
	if grounding != "" {
		return gemini.ParseGroundingMode(grounding)
	}
	return gemini.GroundingFromFlags(useSearch, useMaps), nil
}

func printTurn(w io.Writer, t conversation.Turn, o outputSettings) error {
	if o.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	if t.Reply == nil {
		_, err := fmt.Fprintln(w, t.Content)
		return err
	}

	var out string
	var err error
	switch o.format {
	case "markdown":
		out, err = reply.RenderMarkdown(*t.Reply)
	case "terminal", "":
		out, err = reply.RenderTerminal(*t.Reply, o.style)
	default:
		return errors.Errorf("unknown output format %q", o.format)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func newAskCommand() *cobra.Command {
	var (
		grounding          string
		useSearch, useMaps bool
		output             outputSettings
		speakPath          string
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and print the four-part analysis",
		Long:  "Ask one question and print the four-part analysis. The question is read from stdin when no argument is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := resolveGrounding(grounding, useSearch, useMaps)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			if text == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "could not read question from stdin")
				}
				text = string(b)
			}

			return runWithEvents(cmd.Context(), func(ctx context.Context, sinks []events.EventSink) error {
				a, err := newApp(ctx, false, nil, sinks)
				if err != nil {
					return err
				}
				c := copilot.New(a.dispatcher)
				resp, sendErr := c.Send(ctx, copilot.Request{Text: text, Grounding: mode})
				if resp == nil {
					return sendErr
				}
				if err := printTurn(cmd.OutOrStdout(), resp.Assistant, output); err != nil {
					return err
				}
				if sendErr != nil {
					return sendErr
				}
				if speakPath != "" && resp.Assistant.Reply != nil {
					return writeSpeech(ctx, a.dispatcher, resp.Assistant.Reply.SpeechSummary(), speakPath)
				}
				return nil
			})
		},
	}
	addGroundingFlags(cmd, &grounding, &useSearch, &useMaps)
	addOutputFlags(cmd, &output)
	cmd.Flags().StringVar(&speakPath, "speak", "", "Read the first two sections aloud into this WAV file")
	return cmd
}

func newChatCommand() *cobra.Command {
	var (
		grounding          string
		useSearch, useMaps bool
		output             outputSettings
		historyFile        string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive session, one question per line",
		Long: `Interactive session, one question per line.

Lines starting with / are commands:
  /search, /maps, /none   switch the grounding mode
  /image <path> <prompt>  edit an image
  /speak [path]           read the last analysis aloud into a WAV file (default analysis.wav)
  /history                print the conversation as YAML
  /quit                   leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := resolveGrounding(grounding, useSearch, useMaps)
			if err != nil {
				return err
			}

			return runWithEvents(cmd.Context(), func(ctx context.Context, sinks []events.EventSink) error {
				a, err := newApp(ctx, false, nil, sinks)
				if err != nil {
					return err
				}
				c := copilot.New(a.dispatcher)
				r := &repl{
					copilot: c,
					speaker: a.dispatcher,
					mode:    mode,
					output:  output,
					out:     cmd.OutOrStdout(),
				}
				if err := r.run(ctx, cmd.InOrStdin()); err != nil {
					return err
				}
				if historyFile == "" {
					return nil
				}
				f, err := os.Create(historyFile)
				if err != nil {
					return errors.Wrap(err, "could not create history file")
				}
				defer f.Close()
				return c.History().ExportYAML(f)
			})
		},
	}
	addGroundingFlags(cmd, &grounding, &useSearch, &useMaps)
	addOutputFlags(cmd, &output)
	cmd.Flags().StringVar(&historyFile, "history-file", "", "Write the conversation as YAML to this file on exit")
	return cmd
}

type repl struct {
	copilot *copilot.Copilot
	speaker speaker
	mode    gemini.GroundingMode
	output  outputSettings
	out     io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Fprintf(r.out, "[%s] > ", r.mode)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := r.handleLine(ctx, strings.TrimSpace(scanner.Text()))
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
		fmt.Fprintf(r.out, "[%s] > ", r.mode)
	}
	return scanner.Err()
}

func (r *repl) handleLine(ctx context.Context, line string) (bool, error) {
	switch {
	case line == "":
		return false, nil
	case line == "/quit" || line == "/exit":
		return true, nil
	case line == "/search":
		r.mode = gemini.GroundingSearch
		return false, nil
	case line == "/maps":
		r.mode = gemini.GroundingMaps
		return false, nil
	case line == "/none":
		r.mode = gemini.GroundingNone
		return false, nil
	case line == "/speak" || strings.HasPrefix(line, "/speak "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/speak"))
		if path == "" {
			path = defaultSpeechFile
		}
		r.speakLastReply(ctx, path)
		return false, nil
	case line == "/history":
		return false, r.copilot.History().ExportYAML(r.out)
	case strings.HasPrefix(line, "/image "):
		path, prompt, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "/image ")), " ")
		img, err := conversation.NewImageFromFile(path)
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false, nil
		}
		return false, r.send(ctx, copilot.Request{Text: prompt, Image: img})
	default:
		return false, r.send(ctx, copilot.Request{Text: line, Grounding: r.mode})
	}
}

// send prints the assistant turn. Provider failures are already rendered in
// the turn, so only output errors stop the loop.
func (r *repl) send(ctx context.Context, req copilot.Request) error {
	resp, err := r.copilot.Send(ctx, req)
	if resp == nil {
		fmt.Fprintln(r.out, err)
		return nil
	}
	if err := printTurn(r.out, resp.Assistant, r.output); err != nil {
		return err
	}
	if resp.Assistant.EditedImage != "" {
		fmt.Fprintf(r.out, "(edited image: %d bytes as data URL, use edit-image to save it)\n", len(resp.Assistant.EditedImage))
	}
	return nil
}

const defaultSpeechFile = "analysis.wav"

// speakLastReply reads the latest four-part analysis aloud. Failures are
// printed and the session goes on.
func (r *repl) speakLastReply(ctx context.Context, path string) {
	turns := r.copilot.History().Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Role != conversation.RoleAssistant || t.Reply == nil {
			continue
		}
		if err := writeSpeech(ctx, r.speaker, t.Reply.SpeechSummary(), path); err != nil {
			fmt.Fprintln(r.out, err)
			return
		}
		fmt.Fprintf(r.out, "(wrote %s)\n", path)
		return
	}
	fmt.Fprintln(r.out, "nothing to speak yet")
}

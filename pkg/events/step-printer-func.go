package events

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
)

// StepPrinterFunc returns a watermill handler printing a one-line summary
// of each event to w.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		prefix := ""
		if name != "" {
			prefix = name + ": "
		}

		switch p_ := e.(type) {
		case *EventStart:
			_, err = fmt.Fprintf(w, "%s[start] %s\n", prefix, p_.Metadata_.Model)
		case *EventFinal:
			suffix := ""
			if p_.Degraded {
				suffix = " (degraded)"
			}
			_, err = fmt.Fprintf(w, "%s[final] %d sources%s\n", prefix, len(p_.Reply.GroundingURLs), suffix)
		case *EventError:
			_, err = fmt.Fprintf(w, "%s[error] %s\n", prefix, p_.ErrorString)
		case *EventImage:
			produced := p_.DataURL != ""
			_, err = fmt.Fprintf(w, "%s[image] produced=%t\n", prefix, produced)
		case *EventSessionState:
			_, err = fmt.Fprintf(w, "%s[session] %s\n", prefix, p_.State)
		case *EventInterrupt:
			_, err = fmt.Fprintf(w, "%s[interrupt] dropped %d sources\n", prefix, p_.DiscardedSources)
		case *EventTranscription:
			_, err = fmt.Fprintf(w, "%s[%s] %s\n", prefix, p_.Direction, p_.Text)
		case *EventTurnComplete:
			_, err = fmt.Fprintf(w, "%s[turn complete]\n", prefix)
		}
		return err
	}
}

package conversation

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// History is an ordered, append-only, in-memory list of turns. It is safe for
// concurrent use and never persisted.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range turns {
		h.turns = append(h.turns, t.clone())
	}
}

// Turns returns a copy of all turns in insertion order.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ret := make([]Turn, len(h.turns))
	for i, t := range h.turns {
		ret[i] = t.clone()
	}
	return ret
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Last returns the most recent turn.
func (h *History) Last() (Turn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1].clone(), true
}

// ExportYAML writes the history as a YAML list of turns.
func (h *History) ExportYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(h.Turns()); err != nil {
		return errors.Wrap(err, "could not encode history")
	}
	return errors.Wrap(enc.Close(), "could not flush history")
}

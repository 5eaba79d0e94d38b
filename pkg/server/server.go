package server

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-go-golems/shift/pkg/conversation"
	"github.com/go-go-golems/shift/pkg/copilot"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultRequestTimeout = 180 * time.Second

// MaxRequestBodySize fits one base64 image at the size limit plus the rest of
// the request.
var MaxRequestBodySize = int64(base64.StdEncoding.EncodedLen(conversation.MaxImageSize)) + 64*1024

type MessageRequest struct {
	Text string `json:"text"`
	// Grounding is one of none, search or maps. When empty the two
	// toggles are used instead, search winning over maps.
	Grounding string `json:"grounding,omitempty"`
	UseSearch bool   `json:"useSearch,omitempty"`
	UseMaps   bool   `json:"useMaps,omitempty"`
	// Image is an optional data URL.
	Image string `json:"image,omitempty"`
}

type EditImageRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type MessageResponse struct {
	User      conversation.Turn `json:"user"`
	Assistant conversation.Turn `json:"assistant"`
	Failure   string            `json:"failure,omitempty"`
}

type HistoryResponse struct {
	Turns []conversation.Turn `json:"turns"`
}

// Service exposes a copilot over HTTP. All clients share its one
// conversation and busy guard.
type Service struct {
	copilot     *copilot.Copilot
	gatherer    prometheus.Gatherer
	maxBodySize int64
}

type ServiceOption func(*Service)

// WithMaxBodySize limits the size of API request bodies.
func WithMaxBodySize(n int64) ServiceOption {
	return func(s *Service) {
		s.maxBodySize = n
	}
}

func NewService(c *copilot.Copilot, gatherer prometheus.Gatherer, options ...ServiceOption) *Service {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	ret := &Service{copilot: c, gatherer: gatherer, maxBodySize: MaxRequestBodySize}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *Service) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestSize(s.maxBodySize))
		r.Post("/messages", RestHandler(s.SendMessage))
		r.Post("/images/edit", RestHandler(s.EditImage))
		r.Get("/history", s.GetHistory)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// NewRouter returns the full handler with middleware installed.
func NewRouter(s *Service, allowedOrigins []string, timeout time.Duration) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	s.AddRoutes(r)
	return r
}

func (s *Service) SendMessage(r *http.Request) (any, error) {
	req, err := ParseRequest[MessageRequest](r)
	if err != nil {
		return nil, err
	}

	mode := gemini.GroundingFromFlags(req.UseSearch, req.UseMaps)
	if req.Grounding != "" {
		mode, err = gemini.ParseGroundingMode(req.Grounding)
		if err != nil {
			return nil, CodedError(http.StatusBadRequest, err)
		}
	}

	cr := copilot.Request{Text: req.Text, Grounding: mode}
	if req.Image != "" {
		img, err := conversation.ParseDataURL(req.Image)
		if err != nil {
			return nil, imageError(err)
		}
		cr.Image = img
	}

	return s.send(r, cr)
}

func (s *Service) EditImage(r *http.Request) (any, error) {
	req, err := ParseRequest[EditImageRequest](r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" || req.Image == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required fields: prompt, image")
	}
	img, err := conversation.ParseDataURL(req.Image)
	if err != nil {
		return nil, imageError(err)
	}

	return s.send(r, copilot.Request{Text: req.Prompt, Image: img})
}

func imageError(err error) error {
	if errors.Is(err, conversation.ErrImageTooLarge) {
		return CodedError(http.StatusRequestEntityTooLarge, err)
	}
	return CodedError(http.StatusBadRequest, errors.Wrap(err, "invalid image"))
}

// send maps copilot errors to status codes. Provider failures are not HTTP
// errors: they come back as a rendered assistant turn.
func (s *Service) send(r *http.Request, cr copilot.Request) (any, error) {
	resp, err := s.copilot.Send(r.Context(), cr)
	switch {
	case errors.Is(err, copilot.ErrEmptyRequest):
		return nil, CodedError(http.StatusBadRequest, err)
	case errors.Is(err, copilot.ErrBusy):
		return nil, CodedError(http.StatusConflict, err)
	case resp == nil:
		return nil, err
	}

	return MessageResponse{
		User:      resp.User,
		Assistant: resp.Assistant,
		Failure:   string(resp.Failure),
	}, nil
}

// GetHistory returns the conversation as JSON, or as YAML with ?format=yaml.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "yaml" {
		w.Header().Set("Content-Type", "application/yaml")
		if err := s.copilot.History().ExportYAML(w); err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}
	turns := s.copilot.History().Turns()
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Turns: turns})
}

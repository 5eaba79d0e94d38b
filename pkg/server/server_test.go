package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-go-golems/shift/pkg/conversation"
	"github.com/go-go-golems/shift/pkg/copilot"
	"github.com/go-go-golems/shift/pkg/metrics"
	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/go-go-golems/shift/pkg/steps/ai/gemini"
	"github.com/go-go-golems/shift/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	modes   []gemini.GroundingMode
	prompts []string
	reply   reply.StructuredReply
	err     error
}

func (f *fakeDispatcher) Send(ctx context.Context, message string, mode gemini.GroundingMode) (reply.StructuredReply, error) {
	f.modes = append(f.modes, mode)
	return f.reply, f.err
}

func (f *fakeDispatcher) EditImage(ctx context.Context, prompt string, data []byte, mimeType string) (string, bool, error) {
	f.prompts = append(f.prompts, prompt)
	return conversation.FormatDataURL("image/png", []byte("edited")), true, f.err
}

func newTestRouter(t *testing.T, d *fakeDispatcher) (http.Handler, *copilot.Copilot) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	c := copilot.New(d, copilot.WithMetrics(m))
	r := chi.NewRouter()
	NewService(c, reg).AddRoutes(r)
	return r, c
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var testReply = reply.StructuredReply{Missing: "A", DifferentWay: "B", LongTerm: "C", NextStep: "D", RawText: "raw"}

func TestSendMessage(t *testing.T) {
	d := &fakeDispatcher{reply: testReply}
	h, _ := newTestRouter(t, d)

	rec := post(t, h, "/api/messages", MessageRequest{Text: "hello", Grounding: "maps"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.User.Content)
	require.NotNil(t, resp.Assistant.Reply)
	assert.Equal(t, testReply, *resp.Assistant.Reply)
	assert.Empty(t, resp.Failure)
	assert.Equal(t, []gemini.GroundingMode{gemini.GroundingMaps}, d.modes)
}

func TestSendMessageGroundingToggles(t *testing.T) {
	d := &fakeDispatcher{reply: testReply}
	h, _ := newTestRouter(t, d)

	rec := post(t, h, "/api/messages", MessageRequest{Text: "hi", UseSearch: true, UseMaps: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []gemini.GroundingMode{gemini.GroundingSearch}, d.modes)
}

func TestSendMessageBadRequests(t *testing.T) {
	d := &fakeDispatcher{reply: testReply}
	h, _ := newTestRouter(t, d)

	rec := post(t, h, "/api/messages", MessageRequest{Text: "hi", Grounding: "satellite"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, "/api/messages", MessageRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, copilot.ErrEmptyRequest.Error(), er.Error)

	rec = post(t, h, "/api/messages", MessageRequest{Text: "hi", Image: "not-a-data-url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, d.modes)
}

func TestOversizedRequests(t *testing.T) {
	d := &fakeDispatcher{reply: testReply}
	c := copilot.New(d)
	r := chi.NewRouter()
	NewService(c, prometheus.NewRegistry(), WithMaxBodySize(1024)).AddRoutes(r)

	rec := post(t, r, "/api/messages", MessageRequest{Text: strings.Repeat("a", 2048)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	img := conversation.FormatDataURL("image/png", bytes.Repeat([]byte{1}, 2048))
	rec = post(t, r, "/api/images/edit", EditImageRequest{Prompt: "brighter", Image: img})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = post(t, r, "/api/messages", MessageRequest{Text: "hi"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, d.modes, 1)
	assert.Empty(t, d.prompts)

	var cerr *codedError
	require.ErrorAs(t, imageError(conversation.ErrImageTooLarge), &cerr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, cerr.code)
	require.ErrorAs(t, imageError(errors.New("bad")), &cerr)
	assert.Equal(t, http.StatusBadRequest, cerr.code)
}

func TestSendMessageProviderFailureIsRendered(t *testing.T) {
	d := &fakeDispatcher{err: settings.ErrMissingCredential}
	h, _ := newTestRouter(t, d)

	rec := post(t, h, "/api/messages", MessageRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(copilot.FailureCredential), resp.Failure)
	assert.Contains(t, resp.Assistant.Content, "API Key")
}

func TestEditImage(t *testing.T) {
	d := &fakeDispatcher{}
	h, _ := newTestRouter(t, d)

	img := conversation.FormatDataURL("image/jpeg", []byte("jpeg"))
	rec := post(t, h, "/api/images/edit", EditImageRequest{Prompt: "brighter", Image: img})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, img, resp.User.Image)
	assert.Equal(t, conversation.FormatDataURL("image/png", []byte("edited")), resp.Assistant.EditedImage)
	assert.Equal(t, []string{"brighter"}, d.prompts)

	rec = post(t, h, "/api/images/edit", EditImageRequest{Prompt: "brighter"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetHistory(t *testing.T) {
	d := &fakeDispatcher{reply: testReply}
	h, _ := newTestRouter(t, d)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"turns":[]}`, rec.Body.String())

	post(t, h, "/api/messages", MessageRequest{Text: "hello"})

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	var hr HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hr))
	require.Len(t, hr.Turns, 2)
	assert.Equal(t, conversation.RoleUser, hr.Turns[0].Role)
	assert.Equal(t, conversation.RoleAssistant, hr.Turns[1].Role)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?format=yaml", nil))
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "content: hello")
}

func TestHistorySharedAcrossClients(t *testing.T) {
	d := &fakeDispatcher{reply: testReply}
	h, _ := newTestRouter(t, d)

	for i, addr := range []string{"10.0.0.1:4000", "10.0.0.2:4000"} {
		b, err := json.Marshal(MessageRequest{Text: []string{"first", "second"}[i]})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader(b))
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.RemoteAddr = "10.0.0.3:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var hr HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hr))
	require.Len(t, hr.Turns, 4)
	assert.Equal(t, "first", hr.Turns[0].Content)
	assert.Equal(t, "second", hr.Turns[2].Content)
}

func TestMetricsEndpoint(t *testing.T) {
	d := &fakeDispatcher{err: settings.ErrMissingCredential}
	h, _ := newTestRouter(t, d)
	post(t, h, "/api/messages", MessageRequest{Text: "hi"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shift_failures_total{kind="credential"} 1`)
}

func TestNewRouterCORS(t *testing.T) {
	c := copilot.New(&fakeDispatcher{reply: testReply})
	h := NewRouter(NewService(c, prometheus.NewRegistry()), nil, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

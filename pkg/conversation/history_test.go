package conversation

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/shift/pkg/reply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestHistoryAppendAndOrder(t *testing.T) {
	h := NewHistory()
	_, ok := h.Last()
	assert.False(t, ok)

	u := NewUserTurn("should I take the job?")
	a := NewAssistantTurn("raw", WithReply(reply.StructuredReply{Missing: "A"}))
	h.Append(u, a)

	turns := h.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, u.ID, turns[0].ID)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	require.NotNil(t, turns[1].Reply)
	assert.Equal(t, "A", turns[1].Reply.Missing)
	assert.NotEqual(t, turns[0].ID, turns[1].ID)

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, a.ID, last.ID)
}

func TestHistoryReturnsCopies(t *testing.T) {
	h := NewHistory()
	r := reply.StructuredReply{GroundingURLs: []reply.GroundingReference{{URI: "https://a.example"}}}
	h.Append(NewAssistantTurn("x", WithReply(r)))

	turns := h.Turns()
	turns[0].Content = "mutated"
	turns[0].Reply.Missing = "mutated"
	turns[0].Reply.GroundingURLs[0].URI = "mutated"

	stored := h.Turns()
	assert.Equal(t, "x", stored[0].Content)
	assert.Empty(t, stored[0].Reply.Missing)
	assert.Equal(t, "https://a.example", stored[0].Reply.GroundingURLs[0].URI)
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := NewHistory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Append(NewUserTurn("hi"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, h.Len())
}

func TestHistoryExportYAML(t *testing.T) {
	h := NewHistory()
	h.Append(NewUserTurn("hello", WithImage("data:image/png;base64,AAAA")))

	var buf bytes.Buffer
	require.NoError(t, h.ExportYAML(&buf))

	var decoded []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "user", decoded[0]["role"])
	assert.Equal(t, "hello", decoded[0]["content"])
	assert.Equal(t, "data:image/png;base64,AAAA", decoded[0]["image"])
}

func TestDataURL(t *testing.T) {
	img := &Image{Data: []byte("png-bytes"), MimeType: "image/png"}
	u := img.DataURL()
	assert.Equal(t, "data:image/png;base64,cG5nLWJ5dGVz", u)

	parsed, err := ParseDataURL(u)
	require.NoError(t, err)
	assert.Equal(t, img.Data, parsed.Data)
	assert.Equal(t, "image/png", parsed.MimeType)

	for _, bad := range []string{"image/png;base64,AAAA", "data:image/png;base64", "data:image/png,AAAA", "data:;base64,AAAA", "data:image/png;base64,@@"} {
		_, err := ParseDataURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDataURLRejectsOversizedImages(t *testing.T) {
	payload := strings.Repeat("A", 4*(MaxImageSize/3+2))
	_, err := ParseDataURL("data:image/png;base64," + payload)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestNewImageFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.JPG")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8}, 0o600))

	img, err := NewImageFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, "photo.JPG", img.Name)

	_, err = NewImageFromFile(filepath.Join(dir, "notes.txt"))
	assert.Error(t, err)
}

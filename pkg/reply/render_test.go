package reply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	r := StructuredReply{
		Missing:      "You assume the offer is final.",
		DifferentWay: "Treat it as an opening bid.",
		LongTerm:     "Salary anchors compound.",
		NextStep:     "Ask for 10% more.",
		GroundingURLs: []GroundingReference{
			{URI: "https://a.example", Title: "Salary guide"},
			{URI: "https://b.example"},
		},
	}

	md, err := RenderMarkdown(r)
	require.NoError(t, err)

	headings := []string{
		"### 1. 🧠 What you might be missing",
		"### 2. 🔍 A different way to see this",
		"### 3. ⏳ Long-term consequence",
		"### 4. ✅ Smart next step",
		"### Sources",
	}
	last := -1
	for _, h := range headings {
		idx := strings.Index(md, h)
		require.GreaterOrEqual(t, idx, 0, h)
		assert.Greater(t, idx, last, h)
		last = idx
	}

	assert.Contains(t, md, "Treat it as an opening bid.")
	assert.Contains(t, md, "[1]: Salary guide")
	assert.Contains(t, md, "[2]: https://b.example")
	assert.Contains(t, md, "[https://a.example](https://a.example)")
}

func TestRenderMarkdownWithoutSources(t *testing.T) {
	md, err := RenderMarkdown(emptyReply(nil))
	require.NoError(t, err)

	assert.NotContains(t, md, "Sources")
	assert.Contains(t, md, EmptyNextStep)
}

func TestRenderTerminal(t *testing.T) {
	out, err := RenderTerminal(StructuredReply{Missing: "A", DifferentWay: "B", LongTerm: "C", NextStep: "D"}, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Smart next step")
}

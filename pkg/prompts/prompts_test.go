package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemInstruction(t *testing.T) {
	si := SystemInstruction()
	assert.True(t, strings.HasPrefix(si, "You are SHIFT"))
	for _, key := range []string{`"missing"`, `"differentWay"`, `"longTerm"`, `"nextStep"`} {
		assert.Contains(t, si, key)
	}
}

func TestWithFormatReinforcement(t *testing.T) {
	msg := WithFormatReinforcement("Should I move?")
	assert.True(t, strings.HasPrefix(msg, "Should I move?\n\nIMPORTANT:"))
	assert.Contains(t, msg, "1. 🧠 What you might be missing: [Content]")
	assert.True(t, strings.HasSuffix(msg, "4. ✅ Smart next step: [Content]"))
}

package reply

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

// Normalize turns raw model output plus optional grounding chunks into a
// StructuredReply. It never fails: JSON is tried first, then markdown headings,
// and every field that cannot be recovered gets placeholder text.
func Normalize(rawText string, chunks []RawChunk) StructuredReply {
	grounding := ExtractGrounding(chunks)

	if strings.TrimSpace(rawText) == "" {
		return emptyReply(grounding)
	}

	if r, ok := parseJSON(rawText); ok {
		r.GroundingURLs = grounding
		return r
	}

	r := parseMarkdown(rawText)
	r.GroundingURLs = grounding
	return r
}

// ExtractGrounding maps chunks to references, preferring the web descriptor
// over the maps one. Order is preserved and duplicates are kept.
func ExtractGrounding(chunks []RawChunk) []GroundingReference {
	var ret []GroundingReference
	for _, c := range chunks {
		switch {
		case c.Web != nil:
			ret = append(ret, GroundingReference{URI: c.Web.URI, Title: c.Web.Title})
		case c.Maps != nil:
			ret = append(ret, GroundingReference{URI: c.Maps.URI, Title: c.Maps.Title})
		}
	}
	return ret
}

// extractJSONObject returns the span from the first '{' to the last '}'.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// jsonCandidates lists the fenced JSON blocks of text followed by the
// brace span of the whole text.
func jsonCandidates(text string) []string {
	ret := ExtractJSONBlocks(text)
	if span, ok := extractJSONObject(text); ok {
		ret = append(ret, span)
	}
	return ret
}

func parseJSON(text string) (StructuredReply, bool) {
	var obj map[string]interface{}
	found := false
	for _, candidate := range jsonCandidates(text) {
		var o map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &o); err != nil {
			log.Debug().Err(err).Msg("JSON candidate did not parse")
			continue
		}
		obj, found = o, true
		break
	}
	if !found {
		return StructuredReply{}, false
	}

	field := func(key string) string {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
		return IncompletePlaceholder
	}

	return StructuredReply{
		Missing:      field("missing"),
		DifferentWay: field("differentWay"),
		LongTerm:     field("longTerm"),
		NextStep:     field("nextStep"),
		RawText:      text,
	}, true
}

// Emoji may be followed by a variation selector depending on how the model
// emits it.
const vs = `\x{FE0F}?`

var (
	missingHeadings = compileHeadings(
		`1\.\s*🧠`+vs+`(?:[ \t]*What you might be missing)?`,
		`What you might be missing`,
		`🧠`+vs+`(?:[ \t]*What you might be missing)?`,
	)
	differentWayHeadings = compileHeadings(
		`2\.\s*🔍`+vs+`(?:[ \t]*A different way to see this)?`,
		`A different way to see this`,
		`🔍`+vs+`(?:[ \t]*A different way to see this)?`,
	)
	longTermHeadings = compileHeadings(
		`3\.\s*⏳`+vs+`(?:[ \t]*Long-term consequence)?`,
		`Long-term consequence`,
		`⏳`+vs+`(?:[ \t]*Long-term consequence)?`,
	)
	nextStepHeadings = compileHeadings(
		`4\.\s*✅`+vs+`(?:[ \t]*Smart next step)?`,
		`Smart next step`,
		`✅`+vs+`(?:[ \t]*Smart next step)?`,
	)

	// a section ends at the next numbered item or emoji heading
	sectionTerminator = regexp.MustCompile(`\n\d\.|\n(?:🧠|🔍|⏳|✅)`)
)

func compileHeadings(patterns ...string) []*regexp.Regexp {
	ret := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		ret = append(ret, regexp.MustCompile(`(?i)`+p))
	}
	return ret
}

func parseMarkdown(text string) StructuredReply {
	return StructuredReply{
		Missing:      extractSection(text, missingHeadings),
		DifferentWay: extractSection(text, differentWayHeadings),
		LongTerm:     extractSection(text, longTermHeadings),
		NextStep:     extractSection(text, nextStepHeadings),
		RawText:      text,
	}
}

// extractSection returns the text after the first heading that matches,
// up to the next heading marker. Captures mentioning "failed" are rejected so
// that placeholder text produced by earlier extraction is never picked up again.
func extractSection(text string, headings []*regexp.Regexp) string {
	for _, re := range headings {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		rest := text[loc[1]:]
		if end := sectionTerminator.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		captured := strings.TrimSpace(strings.TrimLeftFunc(rest, isHeadingSeparator))
		if captured == "" || strings.Contains(strings.ToLower(captured), "failed") {
			continue
		}
		return captured
	}
	return UnavailablePlaceholder
}

func isHeadingSeparator(r rune) bool {
	return r == ':' || unicode.IsSpace(r)
}

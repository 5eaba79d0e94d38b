package reply

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
)

const markdownTemplate = `
{{- range $i, $s := .Sections }}
### {{ add $i 1 }}. {{ $s.Emoji }} {{ $s.Title }}

{{ $s.Text }}
{{ end }}
{{- with .GroundingURLs }}
### Sources
{{ range $idx, $ref := . }}
[{{ add $idx 1 }}]: {{ $ref.Title | default $ref.URI }}
- **URL:** [{{ $ref.URI }}]({{ $ref.URI }})
{{- end }}
{{ end -}}
`

var mdTmpl = template.Must(template.New("reply").
	Funcs(sprig.TxtFuncMap()).
	Parse(markdownTemplate))

// RenderMarkdown renders the reply as a markdown document with one heading per section.
func RenderMarkdown(r StructuredReply) (string, error) {
	data := struct {
		Sections      []Section
		GroundingURLs []GroundingReference
	}{
		Sections:      r.Sections(),
		GroundingURLs: r.GroundingURLs,
	}
	var buffer bytes.Buffer
	if err := mdTmpl.Execute(&buffer, data); err != nil {
		return "", errors.Wrap(err, "could not render reply markdown")
	}
	return buffer.String(), nil
}

// RenderTerminal renders the reply as styled terminal output.
func RenderTerminal(r StructuredReply, style string) (string, error) {
	md, err := RenderMarkdown(r)
	if err != nil {
		return "", err
	}
	if style == "" {
		style = "dark"
	}
	styled, err := glamour.Render(md, style)
	if err != nil {
		return "", errors.Wrap(err, "could not style reply")
	}
	return styled, nil
}

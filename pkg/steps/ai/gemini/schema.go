package gemini

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	genai "google.golang.org/genai"
)

// replyFields is reflected into the response schema of ungrounded requests.
type replyFields struct {
	Missing      string `json:"missing" jsonschema:"required,description=Analysis of flawed assumptions or missing data"`
	DifferentWay string `json:"differentWay" jsonschema:"required,description=An alternative way to view the situation"`
	LongTerm     string `json:"longTerm" jsonschema:"required,description=Long-term consequence ignored"`
	NextStep     string `json:"nextStep" jsonschema:"required,description=One concrete move and one reflective question"`
}

// ReplyJSONSchema returns the JSON schema of the four-field reply.
func ReplyJSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	return r.Reflect(&replyFields{})
}

// ReplyResponseSchema returns the reply schema in the provider's format.
func ReplyResponseSchema() *genai.Schema {
	return convertJSONSchemaToGenAI(ReplyJSONSchema())
}

// convertJSONSchemaToGenAI converts an invopop schema to a Gemini schema.
// Only the types used by reply schemas are mapped.
func convertJSONSchemaToGenAI(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	gs := &genai.Schema{Description: s.Description}
	switch s.Type {
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	case "array":
		gs.Type = genai.TypeArray
		gs.Items = convertJSONSchemaToGenAI(s.Items)
	default:
		gs.Type = genai.TypeObject
		if s.Properties != nil && s.Properties.Len() > 0 {
			gs.Properties = map[string]*genai.Schema{}
			for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
				gs.Properties[pair.Key] = convertJSONSchemaToGenAI(pair.Value)
				gs.PropertyOrdering = append(gs.PropertyOrdering, pair.Key)
			}
		}
		if len(s.Required) > 0 {
			gs.Required = append([]string(nil), s.Required...)
		}
	}
	return gs
}

var replySchemaLoader = mustReplySchemaLoader()

func mustReplySchemaLoader() gojsonschema.JSONLoader {
	b, err := json.Marshal(ReplyJSONSchema())
	if err != nil {
		panic(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		panic(err)
	}
	// gojsonschema only knows drafts up to 7
	delete(doc, "$schema")
	return gojsonschema.NewGoLoader(doc)
}

// ValidateReplyJSON checks a JSON reply against the reply schema.
func ValidateReplyJSON(text string) error {
	result, err := gojsonschema.Validate(replySchemaLoader, gojsonschema.NewStringLoader(strings.TrimSpace(text)))
	if err != nil {
		return errors.Wrap(err, "could not validate reply")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.Errorf("reply does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

package ai

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

// Schema is a JSON schema reflected from a Go result type, sent to providers
// that support structured output.
type Schema struct {
	Name        string
	Description string
	JSON        any
}

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

// SchemaFor reflects T into a named Schema.
func SchemaFor[T any](name, description string) *Schema {
	return &Schema{Name: name, Description: description, JSON: generateSchema[T]()}
}

var (
	ChapterSchema   = SchemaFor[ChapterDraft]("chapter_draft", "A new chapter of a serialized novel with character arcs")
	CharacterSchema = SchemaFor[CharacterSheet]("character_sheet", "A fictional character profile")
	RerankSchema    = SchemaFor[RerankResult]("novel_ranking", "Novel ids ordered from most to least relevant")
)

// OpenAIResponseFormat renders the schema as a strict json_schema response format.
func (s *Schema) OpenAIResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        s.Name,
		Description: openai.String(s.Description),
		Schema:      s.JSON,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}

package ai

// ChapterDraft is the object a model returns for chapter generation.
type ChapterDraft struct {
	Title      string         `json:"title" jsonschema:"description=Chapter title without the chapter number"`
	Content    string         `json:"content" jsonschema:"description=Full chapter prose with paragraphs separated by blank lines"`
	Summary    string         `json:"summary" jsonschema:"description=Two or three sentence summary of the chapter"`
	Characters []CharacterArc `json:"characters" jsonschema:"description=Characters that appear in the chapter and how they change"`
}

// CharacterArc describes one character's development within a chapter.
type CharacterArc struct {
	Name           string `json:"name"`
	Role           string `json:"role" jsonschema:"enum=protagonist,enum=supporting,enum=antagonist"`
	Development    string `json:"development"`
	EmotionalState string `json:"emotional_state"`
	Relationships  string `json:"relationships"`
}

// CharacterSheet is the object a model returns for character generation.
type CharacterSheet struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Personality string `json:"personality"`
	Background  string `json:"background"`
	Appearance  string `json:"appearance"`
}

// RerankResult is the object a model returns when re-ranking recommendations.
type RerankResult struct {
	IDs []uint `json:"ids"`
}

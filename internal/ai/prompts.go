package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt template names in prompts.yaml.
const (
	PromptChatReply       = "chat_reply"
	PromptChatHistory     = "chat_history"
	PromptChapterSystem   = "chapter_system"
	PromptChapterUser     = "chapter_user"
	PromptCharacterSystem = "character_system"
	PromptCharacterUser   = "character_user"
	PromptRerankSystem    = "rerank_system"
	PromptRerankUser      = "rerank_user"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompts is a parsed prompt catalog.
type Prompts struct {
	templates map[string]*template.Template
}

var (
	defaultPrompts     *Prompts
	defaultPromptsErr  error
	defaultPromptsOnce sync.Once
)

// DefaultPrompts returns the embedded catalog.
func DefaultPrompts() (*Prompts, error) {
	defaultPromptsOnce.Do(func() {
		defaultPrompts, defaultPromptsErr = ParsePrompts(promptsYAML)
	})
	return defaultPrompts, defaultPromptsErr
}

// ParsePrompts parses a YAML map of template name to text/template source.
func ParsePrompts(data []byte) (*Prompts, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	funcs := template.FuncMap{"join": strings.Join}
	p := &Prompts{templates: make(map[string]*template.Template, len(raw))}
	for name, src := range raw {
		t, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

// Render executes the named template with data.
func (p *Prompts) Render(name string, data any) (string, error) {
	t, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

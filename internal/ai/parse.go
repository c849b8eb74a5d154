package ai

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"fableweaver/internal/observability"

	"github.com/bytedance/sonic"
)

// Strategy names the parsing step that produced a result.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyRepaired Strategy = "repaired"
	StrategyRegex    Strategy = "regex"
)

var (
	ErrUnparseable = errors.New("model output is not parseable")
	ErrNoContent   = errors.New("model output has no chapter content")
)

// CleanJSON strips markdown code fences and any prose around the outermost object.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "\ufeff")
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return s
}

// RepairJSON fixes the mistakes models commonly make when emitting JSON by hand:
// raw control characters inside strings, curly quotes used as delimiters and
// trailing commas before a closing bracket.
func RepairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 64)
	runes := []rune(s)
	inString := false
	escaped := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteRune(r)
			case r == '\\':
				escaped = true
				b.WriteRune(r)
			case r == '"' || (r == '”' && closesString(runes, i+1)):
				inString = false
				b.WriteRune('"')
			case r == '\n':
				b.WriteString(`\n`)
			case r == '\r':
				b.WriteString(`\r`)
			case r == '\t':
				b.WriteString(`\t`)
			case r < 0x20:
				b.WriteString(`\u00`)
				b.WriteString(strconv.FormatInt(int64(r)>>4, 16))
				b.WriteString(strconv.FormatInt(int64(r)&0xf, 16))
			default:
				b.WriteRune(r)
			}
			continue
		}

		switch r {
		case '"', '“', '”':
			inString = true
			b.WriteRune('"')
		case ',':
			j := i + 1
			for j < len(runes) && isSpace(runes[j]) {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// closesString reports whether the next non-space rune after i is structural,
// which is how a curly closing quote acting as a delimiter is told apart from
// one that belongs to the prose.
func closesString(runes []rune, i int) bool {
	for ; i < len(runes); i++ {
		if isSpace(runes[i]) {
			continue
		}
		switch runes[i] {
		case ':', ',', '}', ']':
			return true
		}
		return false
	}
	return true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\r' || r == '\t'
}

// DecodeTolerant decodes raw into dest, trying the cleaned text first and the
// repaired text second.
func DecodeTolerant(raw string, dest any) (Strategy, error) {
	cleaned := CleanJSON(raw)
	if err := sonic.ConfigStd.UnmarshalFromString(cleaned, dest); err == nil {
		return StrategyDirect, nil
	}
	if err := sonic.ConfigStd.UnmarshalFromString(RepairJSON(cleaned), dest); err == nil {
		return StrategyRepaired, nil
	}
	return "", ErrUnparseable
}

func fieldPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + name + `"\s*:\s*"((?:[^"\\]|\\.)*)`)
}

var (
	titleField       = fieldPattern("title")
	contentField     = fieldPattern("content")
	summaryField     = fieldPattern("summary")
	nameField        = fieldPattern("name")
	descriptionField = fieldPattern("description")
	personalityField = fieldPattern("personality")
	backgroundField  = fieldPattern("background")
	appearanceField  = fieldPattern("appearance")
	charactersArray  = regexp.MustCompile(`"characters"\s*:\s*\[`)
	flatObject       = regexp.MustCompile(`\{[^{}]*\}`)
)

func extractField(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return unescapeFragment(m[1])
}

func unescapeFragment(frag string) string {
	var out string
	if err := sonic.ConfigStd.UnmarshalFromString(RepairJSON(`"`+frag+`"`), &out); err == nil {
		return strings.TrimSpace(out)
	}
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "", `\"`, `"`, `\\`, `\`)
	return strings.TrimSpace(r.Replace(frag))
}

// ParseChapter turns raw model output into a ChapterDraft. The regex fallback
// salvages title, content and summary from truncated or malformed objects and
// takes whatever character entries still decode.
func ParseChapter(raw string) (*ChapterDraft, Strategy, error) {
	var draft ChapterDraft
	strategy, err := DecodeTolerant(raw, &draft)
	if err != nil {
		cleaned := CleanJSON(raw)
		draft = ChapterDraft{
			Title:      extractField(titleField, cleaned),
			Content:    extractField(contentField, cleaned),
			Summary:    extractField(summaryField, cleaned),
			Characters: salvageCharacters(cleaned),
		}
		strategy = StrategyRegex
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Content = strings.TrimSpace(draft.Content)
	draft.Summary = strings.TrimSpace(draft.Summary)
	draft.Characters = normalizeArcs(draft.Characters)

	if draft.Content == "" {
		observability.ChapterParseStrategy.WithLabelValues("failed").Inc()
		return nil, strategy, ErrNoContent
	}
	observability.ChapterParseStrategy.WithLabelValues(string(strategy)).Inc()
	return &draft, strategy, nil
}

func salvageCharacters(s string) []CharacterArc {
	loc := charactersArray.FindStringIndex(s)
	if loc == nil {
		return nil
	}
	var arcs []CharacterArc
	for _, obj := range flatObject.FindAllString(s[loc[1]:], -1) {
		var arc CharacterArc
		if _, err := DecodeTolerant(obj, &arc); err == nil {
			arcs = append(arcs, arc)
		}
	}
	return arcs
}

func normalizeArcs(arcs []CharacterArc) []CharacterArc {
	out := arcs[:0]
	seen := make(map[string]bool, len(arcs))
	for _, a := range arcs {
		a.Name = strings.TrimSpace(a.Name)
		key := strings.ToLower(a.Name)
		if a.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		switch strings.ToLower(strings.TrimSpace(a.Role)) {
		case "protagonist", "antagonist":
			a.Role = strings.ToLower(strings.TrimSpace(a.Role))
		default:
			a.Role = "supporting"
		}
		out = append(out, a)
	}
	return out
}

// ParseCharacterSheet turns raw model output into a CharacterSheet.
func ParseCharacterSheet(raw string) (*CharacterSheet, error) {
	var sheet CharacterSheet
	if _, err := DecodeTolerant(raw, &sheet); err != nil {
		cleaned := CleanJSON(raw)
		sheet = CharacterSheet{
			Name:        extractField(nameField, cleaned),
			Description: extractField(descriptionField, cleaned),
			Personality: extractField(personalityField, cleaned),
			Background:  extractField(backgroundField, cleaned),
			Appearance:  extractField(appearanceField, cleaned),
		}
	}
	sheet.Name = strings.TrimSpace(sheet.Name)
	if sheet.Name == "" {
		return nil, ErrUnparseable
	}
	return &sheet, nil
}

// ParseRerank reads an ordered id list from raw model output.
func ParseRerank(raw string) ([]uint, error) {
	var res RerankResult
	if _, err := DecodeTolerant(raw, &res); err != nil {
		return nil, err
	}
	return res.IDs, nil
}
